package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"media-normalizer/internal/config"
	"media-normalizer/internal/discovery"
	"media-normalizer/internal/ffmpeg"
)

func runDoctor(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	input := fs.String("input", cfg.InputDir, "input directory")
	output := fs.String("output", cfg.OutputDir, "output directory")
	ffmpegPath := fs.String("ffmpeg", cfg.FFmpegPath, "ffmpeg binary")
	ffprobePath := fs.String("ffprobe", cfg.FFprobePath, "ffprobe binary")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := discovery.Doctor(discovery.DoctorOptions{
		InputDir:  strings.TrimSpace(*input),
		OutputDir: strings.TrimSpace(*output),
		Tool:      ffmpeg.NewTool(strings.TrimSpace(*ffmpegPath), strings.TrimSpace(*ffprobePath), nil),
	})
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			status := "ok"
			if !c.OK {
				status = "fail"
			}
			fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
		}
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	if !*jsonOut {
		fmt.Println("doctor: all checks passed")
	}
	return nil
}
