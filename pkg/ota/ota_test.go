package ota

import "testing"

func TestGetLastVersion(t *testing.T) {
	version, desc, err := GetLastVersion("gowvp/argus")
	if err != nil {
		// 离线环境或仓库尚未发布 release 时跳过
		t.Skipf("GetLastVersion() error = %v", err)
	}
	t.Logf("version = %s", version)
	t.Logf("desc = %s", desc)
}

func TestCleanRepoName(t *testing.T) {
	cases := map[string]string{
		"gowvp/argus":                    "gowvp/argus",
		"github.com/gowvp/argus":         "gowvp/argus",
		"https://github.com/gowvp/argus": "gowvp/argus",
	}
	for in, want := range cases {
		if got := cleanRepoName(in); got != want {
			t.Errorf("cleanRepoName(%q) = %q, want %q", in, got, want)
		}
	}
}
