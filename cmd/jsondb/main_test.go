package main

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	t.Run("no build info", func(t *testing.T) {
		v := versionOf(nil, false)
		if v.version != "unknown" || v.revision != "unknown" || v.dirty {
			t.Errorf("versionOf = %+v", v)
		}
	})
	t.Run("devel with vcs", func(t *testing.T) {
		info := &debug.BuildInfo{
			GoVersion: "go1.25.5",
			Main:      debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "vcs.modified", Value: "true"},
			},
		}
		want := buildVersion{version: "dev", goVersion: "go1.25.5", revision: "abc123", dirty: true}
		if v := versionOf(info, true); v != want {
			t.Errorf("versionOf = %+v, want %+v", v, want)
		}
	})
	t.Run("tagged", func(t *testing.T) {
		info := &debug.BuildInfo{Main: debug.Module{Version: "v1.2.0"}}
		if v := versionOf(info, true); v.version != "v1.2.0" || v.revision != "unknown" {
			t.Errorf("versionOf = %+v", v)
		}
	})
}
