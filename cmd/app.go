package cmd

import (
	"github.com/urfave/cli"
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load options from a toml, yaml or json document (local path or http/https URL)",
		},
		cli.StringSliceFlag{
			Name:  "set",
			Value: &cli.StringSlice{},
			Usage: "override an option (key=value); may be repeated",
		},
		cli.Uint64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "random seed; overrides the config document",
		},
		cli.StringFlag{
			Name:  "variant",
			Value: "screen",
			Usage: "reuse domain (screen or world); overrides the config document",
		},
	}
}

// Build the command line application.
func NewApp() *cli.App {
	app := cli.NewApp()
	app.Name = "restir"
	app.Usage = "render scenes with reservoir-based spatiotemporal global illumination"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "set log level (debug, info, notice, warning, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a built-in scene",
			Description: `
Render a sequence of frames of a built-in scene. Each frame runs the
visibility pass, candidate generation, spatial and temporal (or world-space)
reuse and final shading, then optionally accumulates and tone-maps the result.

If the output path contains a printf verb (e.g. frame-%03d.png) each frame is
written to its own file.`,
			ArgsUsage: "scene_name",
			Flags: append(configFlags(),
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "frames, n",
					Value: 1,
					Usage: "number of frames to render",
				},
				cli.StringFlag{
					Name:  "motion",
					Value: "none",
					Usage: "camera motion between frames (none, orbit, strafe, dolly)",
				},
				cli.Float64Flag{
					Name:  "speed",
					Value: 0.02,
					Usage: "camera motion step per frame",
				},
				cli.IntFlag{
					Name:  "workers",
					Usage: "number of cpu tracers (defaults to the number of cpus)",
				},
				cli.StringFlag{
					Name:  "scheduler",
					Value: "perfect",
					Usage: "block scheduler (naive or perfect)",
				},
				cli.BoolFlag{
					Name:  "no-mvec",
					Usage: "skip motion vector generation",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frames",
				},
				cli.BoolFlag{
					Name:  "aux",
					Usage: "also write albedo and normal buffers",
				},
				cli.StringFlag{
					Name:  "metrics-addr",
					Usage: "serve prometheus metrics on this address (e.g. :9090)",
				},
				cli.BoolFlag{
					Name:  "wait",
					Usage: "keep serving metrics after rendering until interrupted",
				},
			),
			Action: RenderFrames,
		},
		{
			Name:   "list-scenes",
			Usage:  "list built-in scenes",
			Action: ListScenes,
		},
		{
			Name:      "scene-info",
			Usage:     "display built-in scene information",
			ArgsUsage: "scene_name",
			Action:    ShowSceneInfo,
		},
		{
			Name:  "show-config",
			Usage: "display the effective configuration",
			Flags: append(configFlags(),
				cli.StringFlag{
					Name:  "export",
					Usage: "write the configuration to stdout as toml, yaml or json",
				},
			),
			Action: ShowConfig,
		},
	}

	return app
}
