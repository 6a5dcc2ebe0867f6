package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "BOOKGEST_API_KEY", "DB_PATH", "PATTERNS_FILE", "DEFAULT_LANGUAGE",
		"WORKER_COUNT", "MAX_QUEUE_SIZE", "IMAGE_WORKERS", "MAX_UPLOAD_BYTES",
		"MAX_IMAGES", "MAX_IMAGES_PER_PAGE", "MIN_IMAGE_AREA", "JOB_TTL",
		"PDF_FALLBACK_PDFTOTEXT", "STATS_WINDOW",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.DBPath != "bookgest.db" || cfg.DefaultLanguage != "en" {
		t.Errorf("unexpected storage/language defaults: %+v", cfg)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 || cfg.ImageWorkers != 4 {
		t.Errorf("unexpected worker defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 50*1024*1024 {
		t.Errorf("expected 50MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.MaxImages != 200 || cfg.MaxImagesPerPage != 8 || cfg.MinImageArea != 4096 {
		t.Errorf("unexpected image caps: %+v", cfg)
	}
	if cfg.JobTTL != time.Hour || cfg.StatsWindow != time.Hour {
		t.Errorf("unexpected durations: ttl=%v window=%v", cfg.JobTTL, cfg.StatsWindow)
	}
	if !cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback on by default")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing API key to fail validation")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BOOKGEST_API_KEY", "secret")
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("IMAGE_WORKERS", "9")
	t.Setenv("MAX_IMAGES", "-1")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")
	t.Setenv("MAX_QUEUE_SIZE", "not-a-number")

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected non-positive worker count to reset to 4, got %d", cfg.WorkerCount)
	}
	if cfg.ImageWorkers != 9 {
		t.Errorf("expected 9 image workers, got %d", cfg.ImageWorkers)
	}
	if cfg.MaxImages != 0 {
		t.Errorf("expected negative cap to disable the limit, got %d", cfg.MaxImages)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.JobTTL)
	}
	if cfg.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback disabled")
	}
	if cfg.MaxQueueSize != 100 {
		t.Errorf("expected unparsable value to fall back, got %d", cfg.MaxQueueSize)
	}
}
