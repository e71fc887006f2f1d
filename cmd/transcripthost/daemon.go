package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "com.transcripthost.serve"
	systemdUnit  = "transcripthost.service"
)

// daemonTarget is a rendered service definition for one init system.
type daemonTarget struct {
	path  string
	body  string
	hints []string // printed after install
}

// daemonFor builds the service definition for goos. home and logDir locate
// the per-user unit directory and launchd log files.
func daemonFor(goos, home, logDir, execPath, cfgPath string) (*daemonTarget, error) {
	switch goos {
	case "darwin":
		path := filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
		return &daemonTarget{
			path: path,
			body: renderUnit(launchdTemplate, map[string]string{
				"EXEC":    execPath,
				"CONFIG":  cfgPath,
				"LABEL":   launchdLabel,
				"LOG":     filepath.Join(logDir, "transcripthost.log"),
				"ERR_LOG": filepath.Join(logDir, "transcripthost-error.log"),
			}),
			hints: []string{
				"launchctl load " + path,
				"launchctl unload " + path,
			},
		}, nil
	case "linux":
		name := strings.TrimSuffix(systemdUnit, ".service")
		return &daemonTarget{
			path: filepath.Join(home, ".config", "systemd", "user", systemdUnit),
			body: renderUnit(systemdTemplate, map[string]string{
				"EXEC":   execPath,
				"CONFIG": cfgPath,
			}),
			hints: []string{
				"systemctl --user daemon-reload",
				"systemctl --user enable --now " + name,
				"journalctl --user -u " + name + " -f",
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", goos)
}

// currentDaemon resolves the target for this host.
func currentDaemon(execPath, cfgPath string) (*daemonTarget, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dataDir := filepath.Dir(cfgPath)
	return daemonFor(runtime.GOOS, home, filepath.Join(dataDir, "logs"), execPath, cfgPath)
}

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the server as a user daemon (launchd/systemd)",
		Long:  "Writes a per-user service file that runs 'transcripthost serve' with the current config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := filepath.Abs(resolveConfigPath())
			if err != nil {
				return err
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			target, err := currentDaemon(execPath, cfgPath)
			if err != nil {
				return err
			}
			if runtime.GOOS == "darwin" {
				if err := os.MkdirAll(filepath.Join(filepath.Dir(cfgPath), "logs"), 0o755); err != nil {
					return err
				}
			}
			if err := target.install(); err != nil {
				return err
			}
			fmt.Printf("Daemon installed: %s\n", target.path)
			for _, h := range target.hints {
				fmt.Printf("  %s\n", h)
			}
			return nil
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the user daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := filepath.Abs(resolveConfigPath())
			if err != nil {
				return err
			}
			target, err := currentDaemon("", cfgPath)
			if err != nil {
				return err
			}
			if err := target.uninstall(); err != nil {
				return err
			}
			fmt.Printf("Daemon uninstalled: %s\n", target.path)
			return nil
		},
	}
}

func (d *daemonTarget) install() error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.path, []byte(d.body), 0o644)
}

func (d *daemonTarget) uninstall() error {
	err := os.Remove(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no daemon installed at %s", d.path)
	}
	return err
}

// renderUnit fills the {{KEY}} placeholders of a service template.
func renderUnit(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=Transcript Host HTTP server
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
