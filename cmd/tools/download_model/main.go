package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nupi-ai/stt-whisper-bridge/internal/logging"
	"github.com/nupi-ai/stt-whisper-bridge/internal/models"
)

func main() {
	var (
		variant  = flag.String("variant", "base", "model variant defined in internal/models/embedded_manifest.yaml")
		output   = flag.String("dir", "testdata", "base directory where models/<file> will be stored")
		manifest = flag.String("manifest", "", "optional manifest YAML replacing the embedded one")
		alias    = flag.String("link", "", "optional file name inside models/ to copy the model to (e.g. model.bin)")
	)
	flag.Parse()

	if strings.TrimSpace(*output) == "" {
		fmt.Fprintln(os.Stderr, "download_model: --dir must not be empty")
		os.Exit(2)
	}

	logger := logging.New(os.Stdout, "info")

	baseDir := filepath.Clean(*output)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	manager, err := models.NewManager(baseDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: init manager: %v\n", err)
		os.Exit(1)
	}

	m, err := loadManifest(*manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: load manifest: %v\n", err)
		os.Exit(1)
	}

	path, err := manager.EnsureVariant(ctx, *variant, models.EnsureOptions{Manifest: m})
	if err != nil {
		fmt.Fprintf(os.Stderr, "download_model: ensure variant %q: %v\n", *variant, err)
		os.Exit(1)
	}

	if name := strings.TrimSpace(*alias); name != "" {
		target := filepath.Join(manager.ModelsDir(), name)
		if err := copyFile(path, target); err != nil {
			fmt.Fprintf(os.Stderr, "download_model: link %s: %v\n", target, err)
			os.Exit(1)
		}
		path = target
	}

	fmt.Printf("Model %q ready at %s\n", *variant, path)
}

func loadManifest(path string) (models.Manifest, error) {
	if path == "" {
		return models.DefaultManifest()
	}
	f, err := os.Open(path)
	if err != nil {
		return models.Manifest{}, err
	}
	defer f.Close()
	return models.LoadManifest(f)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
