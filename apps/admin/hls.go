package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
)

func (cli *commandLine) hls(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	switch args[0] {
	case "list":
		return cli.listVideos()

	case "convert":
		cmd := flag.NewFlagSet("hls convert", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		source := cmd.String("source", "", "A YouTube URL, an http(s) URL or a local file.")
		id := cmd.String("id", "", "The video ID: letters, digits, '-' and '_'.")
		if err := cmd.Parse(args[1:]); err != nil {
			return errHelp
		}
		if *source == "" || *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.convertVideo(ctx, *source, *id)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) listVideos() error {
	videos, err := cli.videos.List()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cli.out)
	t.AppendHeader(table.Row{"ID", "Title", "Duration", "Segments", "Size", "Created"})
	var total uint64
	for _, vid := range videos {
		duration := "-"
		if vid.DurationSeconds > 0 {
			duration = time.Duration(vid.DurationSeconds * float64(time.Second)).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			vid.ID,
			vid.Title,
			duration,
			vid.Segments,
			humanize.Bytes(uint64(vid.SizeBytes)),
			humanize.Time(vid.CreatedAt),
		})
		total += uint64(vid.SizeBytes)
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d videos", len(videos)), "", "", humanize.Bytes(total), ""})
	t.Render()
	return nil
}

func (cli *commandLine) convertVideo(ctx context.Context, source, id string) error {
	fmt.Fprintf(cli.out, "converting %s into %q...\n", source, id)
	start := time.Now()
	res := cli.converter.Convert(ctx, source, id)
	if !res.Success {
		return errors.New(res.Error)
	}
	fmt.Fprintf(cli.out, "done in %s: %s\n", time.Since(start).Round(time.Millisecond), res.Playlist)
	return nil
}
