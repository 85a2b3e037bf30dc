package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	phototranslator "github.com/menta2k/photo-translator"
	"github.com/menta2k/photo-translator/internal/config"
	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/internal/utils"
	"github.com/menta2k/photo-translator/pkg/processing"
	"github.com/menta2k/photo-translator/pkg/types"
	"github.com/menta2k/photo-translator/pkg/web"
)

func main() {
	var configPath, in, crop, pair, exportDir, format string
	var backend, model, url, logLevel, port, staticDir string
	var brightness, contrast int
	var translate, serve, saveConfig, version bool

	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/photo-translator/config.json if it exists)")
	flag.StringVar(&in, "in", "", "input image path or URL used instead of the camera (jpg/png/webp)")
	flag.StringVar(&crop, "crop", "", "selection in source pixels: x,y,w,h (default whole frame)")
	flag.IntVar(&brightness, "brightness", -1, "brightness slider 0..100 (default from config)")
	flag.IntVar(&contrast, "contrast", -1, "contrast slider 0..100 (default from config)")
	flag.BoolVar(&translate, "translate", false, "translate the recognized text")
	flag.StringVar(&pair, "pair", "", "language pair to translate with, e.g. eu2es")
	flag.StringVar(&exportDir, "export", "", "write the adjusted and cropped images to this directory")
	flag.StringVar(&format, "format", "", "export format: png|jpg|webp (default from config)")
	flag.StringVar(&backend, "backend", "", "recognizer backend: tesseract|ollama|llamacpp")
	flag.StringVar(&model, "model", "", "vision model for the ollama and llamacpp backends")
	flag.StringVar(&url, "url", "", "vision model server URL")
	flag.BoolVar(&serve, "serve", false, "run the web interface")
	flag.StringVar(&port, "port", "", "web interface port")
	flag.StringVar(&staticDir, "static", "", "directory with web interface assets")
	flag.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	flag.BoolVar(&saveConfig, "save-config", false, "write the effective configuration and exit")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.Parse()

	if version {
		fmt.Println("photo-translator", phototranslator.GetVersion())
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	if backend != "" {
		cfg.Recognizer.Backend = backend
	}
	if model != "" {
		cfg.Recognizer.Model = model
	}
	if url != "" {
		cfg.Recognizer.URL = url
	}
	if pair != "" {
		cfg.Translation.Pair = pair
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if staticDir != "" {
		cfg.Server.StaticDir = staticDir
	}
	if format != "" {
		cfg.Output.DefaultFormat = format
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.LogLevel)

	if saveConfig {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := cfg.Validate(); err != nil {
			fatal("invalid configuration", err)
		}
		if err := cfg.SaveToFile(path); err != nil {
			fatal("failed to save config", err)
		}
		log.Info("configuration written", "path", path)
		return
	}

	var opts []phototranslator.Option
	if in != "" {
		if !utils.IsURL(in) && !utils.IsImageFile(in) {
			fatal("unsupported input", fmt.Errorf("%s is not an image file", in))
		}
		img, err := loadInput(in)
		if err != nil {
			fatal("failed to load input", err)
		}
		opts = append(opts, phototranslator.WithImage(img))
	} else if !serve {
		fatal("usage", fmt.Errorf("%s -in image.jpg|URL [-crop x,y,w,h] [-translate -pair eu2es] [-export dir] | -serve", filepath.Base(os.Args[0])))
	}

	app, err := phototranslator.New(cfg, opts...)
	if err != nil {
		fatal("failed to initialize", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		runServer(ctx, app)
		return
	}

	ro := &phototranslator.RunOptions{Translate: translate}
	if crop != "" {
		sel, err := parseCrop(crop)
		if err != nil {
			fatal("invalid -crop", err)
		}
		ro.Selection = &sel
	}
	if brightness >= 0 || contrast >= 0 {
		params := cfg.Adjust
		b, c := int(params.Brightness*100), int(params.Contrast*100)
		if brightness >= 0 {
			b = brightness
		}
		if contrast >= 0 {
			c = contrast
		}
		params = params.FromSliders(b, c)
		ro.Params = &params
	}

	out, err := app.Run(ctx, ro)
	if exportDir != "" {
		exportImages(app, in, exportDir)
	}
	if out.Result.Text != "" || err == nil {
		fmt.Println(out.Result.Display())
	}
	if out.Translation != nil && out.Translation.Result != "" {
		fmt.Println(out.Translation.Result)
	}
	if err != nil {
		fatal("run failed", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

func loadInput(source string) (image.Image, error) {
	return processing.NewProcessor().LoadImageSmart(source)
}

func parseCrop(v string) (types.Rect, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return types.Rect{}, fmt.Errorf("want x,y,w,h, got %q", v)
	}
	var n [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Rect{}, fmt.Errorf("bad number %q: %w", p, err)
		}
		n[i] = f
	}
	return types.Rect{X: n[0], Y: n[1], W: n[2], H: n[3]}, nil
}

func exportImages(app *phototranslator.App, input, dir string) {
	if err := utils.EnsureDir(dir); err != nil {
		log.Error("failed to create export directory", "dir", dir, "error", err)
		return
	}
	format := strings.ToLower(app.Config.Output.DefaultFormat)

	stages := []struct {
		name string
		get  func() (image.Image, bool)
	}{
		{"adjusted", app.Coordinator.AdjustedImage},
		{"cropped", app.Coordinator.CroppedImage},
	}
	for _, s := range stages {
		img, ok := s.get()
		if !ok {
			continue
		}
		path := utils.ExportFilename(input, dir, s.name, format)
		if err := app.Processor.SaveImage(img, path, format, app.Config.Output.Quality, false); err != nil {
			log.Error("export failed", "path", path, "error", err)
			continue
		}
		size := int64(0)
		if fi, err := os.Stat(path); err == nil {
			size = fi.Size()
		}
		log.Info("wrote image", "path", path, "size", utils.FormatFileSize(size))
	}
}

func runServer(ctx context.Context, app *phototranslator.App) {
	srv := web.NewServer(app.Coordinator, web.Options{
		Port:      app.Config.Server.Port,
		StaticDir: app.Config.Server.StaticDir,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("web interface listening", "port", app.Config.Server.Port)
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			fatal("server failed", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("server shutdown failed", "error", err)
	}
}

func fatal(msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
