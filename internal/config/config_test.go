package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CaptureSampleRate != 48000 {
		t.Errorf("Expected capture rate 48000, got %d", cfg.CaptureSampleRate)
	}
	if cfg.CaptureWindowSamples != 8192 {
		t.Errorf("Expected capture window 8192, got %d", cfg.CaptureWindowSamples)
	}
	if cfg.PlaybackSampleRate != 16000 {
		t.Errorf("Expected playback rate 16000, got %d", cfg.PlaybackSampleRate)
	}
	if cfg.RecognitionModel != "nova-3" {
		t.Errorf("Expected recognition model nova-3, got %s", cfg.RecognitionModel)
	}
	if cfg.RecognitionSampleRate != 16000 {
		t.Errorf("Expected recognition rate 16000, got %d", cfg.RecognitionSampleRate)
	}
	if cfg.PlaybackMaxFrames != 2048 {
		t.Errorf("Expected playback frame cap 2048, got %d", cfg.PlaybackMaxFrames)
	}
}

func TestLoad_Overrides(t *testing.T) {
	os.Setenv("RECOGNITION_MODEL", "nova-2")
	os.Setenv("CAPTURE_WINDOW_SAMPLES", "4096")
	defer os.Unsetenv("RECOGNITION_MODEL")
	defer os.Unsetenv("CAPTURE_WINDOW_SAMPLES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RecognitionModel != "nova-2" {
		t.Errorf("Expected override nova-2, got %s", cfg.RecognitionModel)
	}
	if cfg.CaptureWindowSamples != 4096 {
		t.Errorf("Expected override 4096, got %d", cfg.CaptureWindowSamples)
	}
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("Expected error when keys are missing")
	}

	cfg.AgentAPIKey = "agent-key"
	if err := cfg.ValidateServer(); err == nil {
		t.Error("Expected error when recognition key is missing")
	}

	cfg.RecognitionAPIKey = "recognition-key"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}
