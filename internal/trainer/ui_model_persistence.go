package trainer

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// UIPrefsFile is the name of the preferences file inside the config directory
const UIPrefsFile = "ui_state.json"

type uiModelPersistenceData struct {
	PreferredWrist string `json:"preferred_wrist"`
	LastSession    string `json:"last_session"`
}

type uiModelPersistence struct {
	filePath string
	logger   *log.Logger
	mu       sync.Mutex
	data     uiModelPersistenceData
}

// newUIModelPersistence loads filePath. An empty path keeps preferences in memory only.
func newUIModelPersistence(filePath string, logger *log.Logger) *uiModelPersistence {
	p := &uiModelPersistence{filePath: filePath, logger: logger}
	p.load()
	return p
}

func (p *uiModelPersistence) getPreferredWrist() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.PreferredWrist
}

func (p *uiModelPersistence) setPreferredWrist(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.PreferredWrist == address {
		return
	}
	p.logger.Printf("UIModelPersistence: preferred wrist -> %q", address)
	p.data.PreferredWrist = address
	p.saveLocked()
}

func (p *uiModelPersistence) getLastSession() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.LastSession
}

func (p *uiModelPersistence) setLastSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.LastSession == sessionID {
		return
	}
	p.data.LastSession = sessionID
	p.saveLocked()
}

func (p *uiModelPersistence) load() {
	if p.filePath == "" {
		return
	}
	raw, err := os.ReadFile(p.filePath)
	if err != nil {
		p.logger.Printf("UIModelPersistence: load %s (no existing file)", p.filePath)
		return
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		p.logger.Printf("UIModelPersistence: load %s failed to parse: %v", p.filePath, err)
		p.data = uiModelPersistenceData{}
		return
	}
	p.logger.Printf("UIModelPersistence: load %s -> wrist %q", p.filePath, p.data.PreferredWrist)
}

func (p *uiModelPersistence) saveLocked() {
	if p.filePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0o755); err != nil {
		p.logger.Printf("UIModelPersistence: save mkdir failed: %v", err)
		return
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		p.logger.Printf("UIModelPersistence: save marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(p.filePath, raw, 0o644); err != nil {
		p.logger.Printf("UIModelPersistence: save %s failed: %v", p.filePath, err)
	}
}
