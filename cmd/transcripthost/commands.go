package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"transcripthost/internal/discord"
	"transcripthost/internal/domain"
	"transcripthost/internal/export"
	"transcripthost/internal/service"
	"transcripthost/internal/transcript"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	var req service.GenerateRequest

	cmd := &cobra.Command{
		Use:   "generate [channel-id]",
		Short: "Fetch a channel's recent messages and store a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req.ChannelID = args[0]
			res, err := a.svc.GenerateTranscript(ctx, req)
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "number of messages to fetch (1-100, default from config)")
	cmd.Flags().StringVar(&req.TicketID, "ticket", "", "ticket id recorded with the transcript")
	cmd.Flags().StringVar(&req.UserID, "user-id", "", "ticket owner user id")
	cmd.Flags().StringVar(&req.GuildID, "guild-id", "", "guild id")
	cmd.Flags().StringVar(&req.Username, "username", "", "ticket owner display name")
	cmd.Flags().StringVar(&req.ClosedBy, "closed-by", "", "who closed the ticket")
	return cmd
}

func renderCmd() *cobra.Command {
	var (
		output  string
		channel domain.ChannelContext
	)

	cmd := &cobra.Command{
		Use:   "render [messages.json]",
		Short: "Render a saved Discord messages response to HTML without network access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			messages, err := discord.DecodeMessages(f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			if channel.Name == "" {
				channel.Name = discord.UnknownChannelName
			}

			renderer := transcript.NewRenderer(transcript.RendererConfig{
				Location:    cfg.Location(),
				ProductName: cfg.Transcripts.ProductName,
				Logger:      logger,
			})
			doc := renderer.Render(messages, channel)

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(doc.HTML)
				return err
			}
			if err := os.WriteFile(output, doc.HTML, 0o644); err != nil {
				return err
			}
			logger.Info("transcript rendered", "file", output, "messages", doc.MessageCount,
				"size", humanize.Bytes(uint64(len(doc.HTML))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&channel.Name, "channel-name", "", "channel name shown in the header")
	cmd.Flags().StringVar(&channel.ID, "channel-id", "", "channel id shown in the header")
	cmd.Flags().StringVar(&channel.GuildID, "guild-id", "", "server id shown in the header")
	return cmd
}

func exportPDFCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-pdf [transcript.html]",
		Short: "Print a transcript to PDF with headless Chrome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			html, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".pdf"
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pdf := export.NewPDF(export.PDFConfig{
				Headless: cfg.Export.Headless,
				ExecPath: cfg.Export.ChromePath,
				Timeout:  time.Duration(cfg.Export.TimeoutSeconds) * time.Second,
				Logger:   logger,
			})
			data, err := pdf.Render(ctx, html)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			logger.Info("pdf written", "file", output, "size", humanize.Bytes(uint64(len(data))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input with .pdf extension)")
	return cmd
}

func filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List uploaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := a.svc.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILENAME\tSIZE\tUPLOADED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Filename, humanize.Bytes(uint64(f.Size)), humanize.Time(f.UploadedAt))
			}
			return tw.Flush()
		},
	}
}

func transcriptsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "List indexed transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.svc.ListTranscripts(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				data, _ := json.MarshalIndent(records, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tTICKET\tMESSAGES\tSIZE\tUPLOADED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Filename, r.TicketID, r.MessageCount,
					humanize.Bytes(uint64(r.Size)), humanize.Time(r.UploadedAt))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}
