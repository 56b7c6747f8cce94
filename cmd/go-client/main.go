// Command go-client is a small command-line client for the chatterbox-service
// HTTP API. It submits text for synthesis and writes the returned audio to a
// file, or probes the service health.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Flag names.
const (
	flagURL          = "url"
	flagText         = "text"
	flagOutput       = "output"
	flagFormat       = "format"
	flagExaggeration = "exaggeration"
	flagCFGWeight    = "cfg-weight"
	flagTemperature  = "temperature"
	flagHealth       = "health"
	flagTimeout      = "timeout"
)

// Flag descriptions.
const (
	flagURLDesc          = "Base URL of the chatterbox-service"
	flagTextDesc         = "Text to convert to speech"
	flagOutputDesc       = "Output file path"
	flagFormatDesc       = "Output audio format (wav, mp3, ogg)"
	flagExaggerationDesc = "Emotion exaggeration (0.0-2.0)"
	flagCFGWeightDesc    = "Classifier-free guidance weight (0.0-1.0)"
	flagTemperatureDesc  = "Sampling temperature (0.1-2.0)"
	flagHealthDesc       = "Check service health and exit"
	flagTimeoutDesc      = "Request timeout"
)

// Defaults.
const (
	defaultURL          = "http://localhost:8080"
	defaultOutputFile   = "output.wav"
	defaultFormat       = "wav"
	defaultExaggeration = 0.5
	defaultCFGWeight    = 0.5
	defaultTemperature  = 1.0
	defaultTimeout      = 5 * time.Minute
	healthTimeout       = 10 * time.Second
)

var errTextRequired = errors.New("--text must be provided")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	url          string
	text         string
	output       string
	format       string
	exaggeration float64
	cfgWeight    float64
	temperature  float64
	health       bool
	timeout      time.Duration
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	if flags.health {
		return checkHealth(flags.url)
	}

	if flags.text == "" {
		flag.Usage()

		return errTextRequired
	}

	return synthesize(flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.url, flagURL, defaultURL, flagURLDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.output, flagOutput, defaultOutputFile, flagOutputDesc)
	flag.StringVar(&flags.format, flagFormat, defaultFormat, flagFormatDesc)
	flag.Float64Var(&flags.exaggeration, flagExaggeration, defaultExaggeration, flagExaggerationDesc)
	flag.Float64Var(&flags.cfgWeight, flagCFGWeight, defaultCFGWeight, flagCFGWeightDesc)
	flag.Float64Var(&flags.temperature, flagTemperature, defaultTemperature, flagTemperatureDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)
	flag.Parse()

	return flags
}

// checkHealth probes the service health endpoint and prints the result.
func checkHealth(baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service is not healthy: %w",
			fmt.Errorf("status %s", resp.Status))
	}

	fmt.Println("Service is healthy")

	return nil
}

// synthesize posts the text to the service and writes the binary audio
// response to the output file.
func synthesize(flags appFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	payload := map[string]any{
		"text":          flags.text,
		"exaggeration":  flags.exaggeration,
		"cfg_weight":    flags.cfgWeight,
		"temperature":   flags.temperature,
		"output_format": flags.format,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, flags.url+"/tts", bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("synthesis failed: %w",
			fmt.Errorf("status %s: %s", resp.Status, bytes.TrimSpace(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read audio response: %w", err)
	}

	err = os.WriteFile(flags.output, audio, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Generated: %s (%.1fs, %s)\n",
		flags.output,
		parseDuration(resp.Header.Get("X-Audio-Duration")),
		resp.Header.Get("X-Output-Format"))

	return nil
}

func parseDuration(header string) float64 {
	var seconds float64

	_, err := fmt.Sscanf(header, "%g", &seconds)
	if err != nil {
		return 0
	}

	return seconds
}
