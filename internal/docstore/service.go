// Package docstore keeps the whole brokerage state in one JSON document on disk.
// Every write is a read-modify-write of the full document under a process-wide mutex,
// persisted with a temp file and rename.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

var _ store.BrokerStore = (*Service)(nil)

// document is the persisted shape.
type document struct {
	Users        []models.User            `json:"users"`
	Deposits     []models.Deposit         `json:"deposits"`
	Withdrawals  []models.Withdrawal      `json:"withdrawals"`
	Trades       []models.Trade           `json:"trades"`
	KycRequests  []models.KycRequest      `json:"kycRequests"`
	ChatMessages []models.ChatMessage     `json:"chatMessages"`
	Movements    []models.BalanceMovement `json:"movements"`
}

type Service struct {
	mu          sync.Mutex
	path        string
	sessionPath string
	doc         *document
	sessions    map[string]models.Session
}

// NewService loads the document and session files, starting empty when they do not exist.
func NewService(cfg models.DocumentConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("document path cannot be empty")
	}
	sessionPath := cfg.SessionPath
	if sessionPath == "" {
		sessionPath = filepath.Join(filepath.Dir(cfg.Path), "broker_pro_session.json")
	}

	s := &Service{
		path:        cfg.Path,
		sessionPath: sessionPath,
		doc:         &document{},
		sessions:    map[string]models.Session{},
	}
	if err := readJSON(s.path, s.doc); err != nil {
		return nil, fmt.Errorf("unable to load document: %w", err)
	}
	if err := readJSON(s.sessionPath, &s.sessions); err != nil {
		return nil, fmt.Errorf("unable to load sessions: %w", err)
	}

	zap.L().Info("Document store loaded",
		zap.String("file", s.path),
		zap.Int("users", len(s.doc.Users)),
		zap.Int("sessions", len(s.sessions)))
	return s, nil
}

func (s *Service) Close() {}

// mutate applies fn to a private copy of the document and swaps it in only once it is on disk.
func (s *Service) mutate(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := cloneDocument(s.doc)
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := writeJSON(s.path, next); err != nil {
		return fmt.Errorf("failed to persist document: %w", err)
	}
	s.doc = next
	return nil
}

// view runs fn against the current document under the lock.
func (s *Service) view(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.doc)
}

func cloneDocument(doc *document) (*document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &out, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		return errors.Join(err, tmp.Close(), os.Remove(tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(err, os.Remove(tmp.Name()))
	}
	return os.Rename(tmp.Name(), path)
}
