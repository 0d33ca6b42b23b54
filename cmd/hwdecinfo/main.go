// Command hwdecinfo inspects the hardware video-decode capabilities of
// this machine: driver version and vendor, the image format hwdec would
// negotiate, and the decode profiles the driver reports.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/gogpu/hwdec"
	"github.com/gogpu/hwdec/driver"
	"github.com/gogpu/hwdec/driver/vadrv"
)

func main() {
	app := &cli.App{
		Name:  "hwdecinfo",
		Usage: "inspect hardware video-decode capabilities",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "device",
				Aliases: []string{"d"},
				Value:   "auto",
				Usage:   "connection hint: DRM node path or X11 display name",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "probe",
				Usage: "also create a decode config per reported profile at 1920x1088",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hwdecinfo:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		hwdec.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	drv, err := vadrv.New()
	if err != nil {
		return err
	}

	dev, err := hwdec.NewDevice(drv, hwdec.WithDevice(c.String("device")))
	if err != nil {
		return err
	}
	defer dev.Close()

	color := isatty.IsTerminal(os.Stdout.Fd())
	heading(color, "device")
	fmt.Printf("  driver:  %s\n", drv.Name())
	fmt.Printf("  vendor:  %s\n", drv.VendorString(dev.Display()))
	fmt.Printf("  format:  %s (%s)\n", dev.ImageFormat().FourCC, dev.PixelFormat())

	formats, st := drv.QueryImageFormats(dev.Display())
	if !st.Ok() {
		return fmt.Errorf("query image formats: %s", vadrv.ErrorString(st))
	}
	heading(color, "image formats")
	for _, f := range formats {
		fmt.Printf("  %s  %d bpp\n", f.FourCC, f.BitsPerPixel)
	}

	profiles, st := drv.QueryProfiles(dev.Display())
	if !st.Ok() {
		return fmt.Errorf("query profiles: %s", vadrv.ErrorString(st))
	}
	heading(color, "decode profiles")
	for _, p := range profiles {
		if c.Bool("probe") {
			fmt.Printf("  %-16s %s\n", p, probe(dev, p))
			continue
		}
		fmt.Printf("  %s\n", p)
	}
	return nil
}

// probe tries to create a decode config for the profile at a common HD
// coded size and reports the outcome.
func probe(dev *hwdec.DeviceContext, p driver.Profile) string {
	cfg, err := dev.NewConfig(p, 1920, 1088)
	if err != nil {
		return fmt.Sprintf("unavailable (%v)", err)
	}
	n := cfg.PoolSize()
	return fmt.Sprintf("ok (%d surfaces)", n)
}

func heading(color bool, s string) {
	if color {
		fmt.Printf("\x1b[1m%s\x1b[0m\n", s)
		return
	}
	fmt.Printf("%s:\n", s)
}
