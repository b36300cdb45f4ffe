package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Tutortoise/weapon-detection-service/config"
	"github.com/Tutortoise/weapon-detection-service/detections"
	"github.com/Tutortoise/weapon-detection-service/logger"
	"github.com/Tutortoise/weapon-detection-service/model"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML configuration file")
	flag.StringVar(&configPath, "c", "", "path to YAML configuration file (shorthand)")
	flag.Parse()

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	rt := model.DetectRuntime()
	log.Info("Starting weapon detection service",
		"goos", rt.GOOS,
		"goarch", rt.GOARCH,
		"num_cpu", rt.NumCPU,
		"avx2", rt.AVX2,
		"avx512", rt.AVX512,
	)

	// A model that fails to load keeps the process up but unhealthy.
	var detector detections.Model
	if err := model.InitRuntime(cfg.Model.SharedLibraryPath); err != nil {
		log.Error("Failed to initialize ONNX Runtime", "error", err)
	} else {
		defer func() {
			if err := model.ShutdownRuntime(); err != nil {
				log.Warn("Failed to destroy ONNX environment", "error", err)
			}
		}()

		pool, err := loadModel(cfg)
		if err != nil {
			log.Error("Failed to load model", "path", cfg.Model.Path, "error", err)
		} else {
			detector = pool
			log.Info("Model loaded",
				"path", cfg.Model.Path,
				"classes", len(pool.LabelMap()),
				"pool_size", pool.Size(),
			)
		}
	}

	state, err := NewAppState(cfg, log, detector, map[string]interface{}{
		"path":    filepath.Base(cfg.Model.Path),
		"runtime": rt,
	})
	if err != nil {
		if detector != nil {
			detector.Close()
		}
		return err
	}
	defer func() {
		if err := state.Close(); err != nil {
			log.Warn("Failed to close model", "error", err)
		}
	}()

	srv := &http.Server{
		Handler:      state.Router(),
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func loadModel(cfg *config.Config) (*model.SessionPool, error) {
	labels, err := model.LoadLabelMap(cfg.Model.LabelMapPath, cfg.Model.MaxClasses)
	if err != nil {
		return nil, err
	}

	sessionCfg := model.SessionConfig{
		ModelPath:      cfg.Model.Path,
		InputName:      cfg.Model.InputName,
		BoxesOutput:    cfg.Model.BoxesOutput,
		ScoresOutput:   cfg.Model.ScoresOutput,
		ClassesOutput:  cfg.Model.ClassesOutput,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	}

	return model.NewSessionPool(func() (model.Runner, error) {
		session, err := model.NewSession(sessionCfg)
		if err != nil {
			return nil, err
		}
		return session, nil
	}, cfg.Model.PoolSize, labels, model.DefaultAcquireTimeout)
}
