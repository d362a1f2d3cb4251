// Package sender provides the folder sender of the PEPPOL AS2 client.
//
// The FolderSender watches an outbox folder for Standard Business Documents
// and delivers each one to its receiver's AS2 endpoint. Routing identifiers
// (sender, receiver, document type, process) are taken from the SBDH of the
// file; everything else comes from the base parameters.
//
// # File Handling
//
// Files ending in .xml or .xml.gz are picked up. A file is deleted once it
// was sent and a positive MDN was received. Otherwise it is moved to the
// error folder together with a ".error" file describing the failure. There
// is no automatic retry; moving a file back into the outbox sends it again.
//
// # Triggers
//
// fsnotify events start a sweep of the folder shortly after a file is
// created or written. A periodic sweep catches files whose events were
// missed, for example on network file systems.
//
// # Concurrency
//
// Sweeps are serialized, so every file is sent by at most one goroutine.
// Running several folder senders on the same outbox is not supported.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sirosfoundation/go-peppol-as2/pkg/as2"
	"github.com/sirosfoundation/go-peppol-as2/pkg/as2client"
	"github.com/sirosfoundation/go-peppol-as2/pkg/resource"
	"github.com/sirosfoundation/go-peppol-as2/pkg/sbdh"
)

// ErrorSuffix is appended to the name of the failure report written next to
// a rejected file
const ErrorSuffix = ".error"

// Config holds folder sender configuration
type Config struct {
	// SendingDir is the watched outbox folder
	SendingDir string
	// ErrorDir receives files that could not be sent
	ErrorDir string
	// PollInterval is the period of the safety sweep
	PollInterval time.Duration
	// SettleDelay is how long to wait after the last file event before
	// sweeping, so that files are completely written
	SettleDelay time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 30 * time.Second,
		SettleDelay:  500 * time.Millisecond,
	}
}

// Outcome is the result of sending one file
type Outcome struct {
	File     string
	Response *as2.Response
	Err      error
}

// Failed reports whether the file was moved to the error folder
func (o Outcome) Failed() bool {
	return o.Err != nil || (o.Response != nil && o.Response.HasException())
}

// FolderSender delivers SBD files found in a folder
type FolderSender struct {
	config *Config
	base   as2client.Params
	opts   []as2client.Option
	logger *slog.Logger

	// OnOutcome is called after every file when set
	OnOutcome func(Outcome)

	sweepMu  sync.Mutex
	mu       sync.Mutex
	debounce *time.Timer

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFolderSender creates a folder sender. base holds the parameters shared
// by every file; opts configure each per-file as2client.Builder.
func NewFolderSender(cfg *Config, base as2client.Params, opts []as2client.Option, logger *slog.Logger) (*FolderSender, error) {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.SendingDir == "" || cfg.ErrorDir == "" {
		return nil, errors.New("sending and error folders are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaults.SettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, dir := range []string{cfg.SendingDir, cfg.ErrorDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating folder: %w", err)
		}
	}

	return &FolderSender{
		config: cfg,
		base:   base,
		opts:   opts,
		logger: logger.With("folder", cfg.SendingDir),
	}, nil
}

// Start begins watching the outbox. Files already present are sent right
// away.
func (s *FolderSender) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(s.config.SendingDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", s.config.SendingDir, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(watcher)
	s.logger.Info("folder sender started", "poll_interval", s.config.PollInterval)
	return nil
}

// Stop stops watching and waits for a running sweep to finish
func (s *FolderSender) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.mu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	s.logger.Info("folder sender stopped")
}

func (s *FolderSender) run(watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	defer watcher.Close()

	s.Sweep(s.ctx)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.Sweep(s.ctx)

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isOutboxFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			s.scheduleSweep()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

func (s *FolderSender) scheduleSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.config.SettleDelay, func() {
		if s.ctx.Err() != nil {
			return
		}
		s.Sweep(s.ctx)
	})
}

func isOutboxFile(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}

// Sweep sends every file currently in the outbox, oldest name first
func (s *FolderSender) Sweep(ctx context.Context) []Outcome {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	entries, err := os.ReadDir(s.config.SendingDir)
	if err != nil {
		s.logger.Error("failed to list outbox", "error", err)
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && isOutboxFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var outcomes []Outcome
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		outcome := s.sendFile(ctx, filepath.Join(s.config.SendingDir, name))
		outcomes = append(outcomes, outcome)
		if s.OnOutcome != nil {
			s.OnOutcome(outcome)
		}
	}
	return outcomes
}

func (s *FolderSender) sendFile(ctx context.Context, path string) Outcome {
	log := s.logger.With("file", filepath.Base(path))
	outcome := Outcome{File: path}

	resp, err := s.send(ctx, path)
	outcome.Response = resp
	outcome.Err = err

	if !outcome.Failed() {
		if err := os.Remove(path); err != nil {
			log.Error("failed to delete sent file", "error", err)
		}
		log.Info("file sent", "message_id", resp.MessageID)
		return outcome
	}

	reason := err
	if reason == nil {
		reason = resp.Exception
	}
	log.Warn("file could not be sent", "error", reason)
	if err := s.moveToErrorDir(path, reason, resp); err != nil {
		log.Error("failed to move file to error folder", "error", err)
	}
	return outcome
}

// send reads the SBD and sends it through a fresh builder
func (s *FolderSender) send(ctx context.Context, path string) (*as2.Response, error) {
	data, err := resource.ReadAll(resource.ForPath(path))
	if err != nil {
		return nil, err
	}
	env, err := sbdh.Parse(data)
	if err != nil {
		return nil, err
	}

	params := s.base
	if !env.Sender.IsEmpty() {
		params.SenderID = env.Sender
	}
	params.ReceiverID = env.Receiver
	params.DocumentTypeID = env.DocumentType
	params.ProcessID = env.Process
	params.Document = nil
	params.DocumentElement = env.Payload

	return as2client.New(params, s.opts...).SendSynchronous(ctx)
}

// moveToErrorDir moves the file and writes the failure report next to it
func (s *FolderSender) moveToErrorDir(path string, reason error, resp *as2.Response) error {
	target := filepath.Join(s.config.ErrorDir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(s.config.ErrorDir, time.Now().UTC().Format("20060102T150405.000000000")+"-"+filepath.Base(path))
	}
	if err := os.Rename(path, target); err != nil {
		return err
	}

	var report strings.Builder
	fmt.Fprintf(&report, "file: %s\ntime: %s\nerror: %v\n", filepath.Base(path), time.Now().UTC().Format(time.RFC3339), reason)
	if resp != nil {
		fmt.Fprintf(&report, "response: %s\n", resp)
	}
	return os.WriteFile(target+ErrorSuffix, []byte(report.String()), 0o640)
}
