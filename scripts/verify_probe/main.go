package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

// target is one verification token an inspector could scan.
type target struct {
	Token          string                  `json:"token"`
	ExpectSnapshot string                  `json:"expectSnapshot"`
	ExpectStatus   models.ComplianceStatus `json:"expectStatus"`
	Critical       bool                    `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type envelope struct {
	Data  *dto.VerificationResponse `json:"data"`
	Error *appErrors.Error          `json:"error"`
}

type probe struct {
	Target     target
	HTTPStatus int
	Result     *dto.VerificationResponse
	Mismatches []string
	Error      error
	Duration   time.Duration
}

func (p probe) failed() bool {
	return p.Error != nil || len(p.Mismatches) > 0
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/verify", "Public verification base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "verify_probe", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		probes   []probe
		breaking int
		optional int
	)
	for _, t := range targets {
		p := probeTarget(client, base, t)
		if p.failed() {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		probes = append(probes, p)
	}

	printReport(probes)

	fmt.Printf("Breaking failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func probeTarget(client *http.Client, base string, tgt target) probe {
	p := probe{Target: tgt}
	if client == nil {
		p.Error = errors.New("nil client")
		return p
	}
	if strings.TrimSpace(tgt.Token) == "" {
		p.Error = errors.New("empty token")
		return p
	}

	start := time.Now()
	resp, err := client.Get(strings.TrimRight(base, "/") + "/" + url.PathEscape(tgt.Token))
	if err != nil {
		p.Error = fmt.Errorf("request failed: %w", err)
		return p
	}
	defer resp.Body.Close()
	p.Duration = time.Since(start)
	p.HTTPStatus = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.Error = fmt.Errorf("read body: %w", err)
		return p
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		p.Error = fmt.Errorf("decode body: %w", err)
		return p
	}
	if env.Error != nil {
		p.Error = fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		return p
	}
	if env.Data == nil {
		p.Error = errors.New("response carried no data")
		return p
	}

	p.Result = env.Data
	p.Mismatches = compare(tgt, env.Data)
	return p
}

func compare(tgt target, got *dto.VerificationResponse) []string {
	var out []string
	if !got.HashValid {
		out = append(out, "snapshot hash does not match payload")
	}
	if tgt.ExpectSnapshot != "" && got.SnapshotID != tgt.ExpectSnapshot {
		out = append(out, fmt.Sprintf("snapshot %s, expected %s", got.SnapshotID, tgt.ExpectSnapshot))
	}
	if tgt.ExpectStatus != "" && got.Status != tgt.ExpectStatus {
		out = append(out, fmt.Sprintf("status %s, expected %s", got.Status, tgt.ExpectStatus))
	}
	return out
}

func printReport(results []probe) {
	fmt.Println("Verification Probe Report")
	fmt.Println("=========================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if len(res.Mismatches) > 0 {
			status = "MISMATCH"
		}
		fmt.Printf("[%s] %s\n", status, res.Target.Token)
		fmt.Printf("  HTTP Status: %d (%s)\n", res.HTTPStatus, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Snapshot: %s | Status: %s | Sealed: %s | Critical: %t\n",
			res.Result.SnapshotID, res.Result.Status, res.Result.SealedAt, res.Target.Critical)
		for _, m := range res.Mismatches {
			fmt.Printf("  - %s\n", m)
		}
	}
}
