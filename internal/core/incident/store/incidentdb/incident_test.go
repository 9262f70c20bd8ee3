package incidentdb

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gowvp/argus/internal/core/incident"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	return gdb, mock, nil
}

func TestIncidentGet(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	incidentDB := NewDB(db).Incident()

	mock.ExpectQuery(`SELECT \* FROM "incidents" WHERE id=\$1 (.+) LIMIT \$2`).
		WithArgs(int64(7), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "incident_type", "severity", "feed_id"}).
			AddRow(7, "crime", "high", "fd_1"))

	var out incident.Incident
	if err := incidentDB.Get(context.Background(), &out, orm.Where("id=?", int64(7))); err != nil {
		t.Fatal(err)
	}
	if out.Type != "crime" || out.FeedID != "fd_1" {
		t.Fatalf("unexpected incident %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestIncidentCount(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	incidentDB := NewDB(db).Incident()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "incidents" WHERE acknowledged = \$1`).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	total, err := incidentDB.Count(context.Background(), orm.Where("acknowledged = ?", false))
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("count = %d, want 5", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestNotificationLogAdd(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	logDB := NewDB(db).NotificationLog()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "notification_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	entry := incident.NotificationLog{
		IncidentID: 7,
		Channel:    "email",
		Recipient:  "police@example.com",
		Status:     "sent",
		CreatedAt:  orm.Now(),
	}
	if err := logDB.Add(context.Background(), &entry); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}
