package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderUnit(t *testing.T) {
	out := renderUnit(systemdTemplate, map[string]string{"EXEC": "/usr/bin/transcripthost", "CONFIG": "/etc/th.json"})
	if !strings.Contains(out, "ExecStart=/usr/bin/transcripthost serve --config /etc/th.json") {
		t.Errorf("unit = %s", out)
	}
	if strings.Contains(out, "{{") {
		t.Errorf("unfilled placeholder in %s", out)
	}
}

func TestDaemonFor(t *testing.T) {
	tests := []struct {
		goos     string
		wantPath string
		wantBody string
	}{
		{"linux", ".config/systemd/user/transcripthost.service", "ExecStart=/bin/th serve --config /cfg.json"},
		{"darwin", "Library/LaunchAgents/com.transcripthost.serve.plist", "<string>/logs/transcripthost.log</string>"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			d, err := daemonFor(tt.goos, "/home/u", "/logs", "/bin/th", "/cfg.json")
			if err != nil {
				t.Fatalf("daemonFor: %v", err)
			}
			if d.path != filepath.Join("/home/u", tt.wantPath) {
				t.Errorf("path = %s", d.path)
			}
			if !strings.Contains(d.body, tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, d.body)
			}
			if strings.Contains(d.body, "{{") {
				t.Errorf("unfilled placeholder in %s", d.body)
			}
			if len(d.hints) == 0 {
				t.Error("expected usage hints")
			}
		})
	}

	if _, err := daemonFor("plan9", "/home/u", "/logs", "/bin/th", "/cfg.json"); err == nil {
		t.Error("expected error for unsupported OS")
	}
}

func TestDaemonTarget_InstallUninstall(t *testing.T) {
	home := t.TempDir()
	d, err := daemonFor("linux", home, "", "/bin/th", "/cfg.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.install(); err != nil {
		t.Fatalf("install: %v", err)
	}
	data, err := os.ReadFile(d.path)
	if err != nil || string(data) != d.body {
		t.Fatalf("unit file = %q, %v", data, err)
	}
	if err := d.uninstall(); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if err := d.uninstall(); err == nil {
		t.Error("second uninstall should report a missing unit")
	}
}
