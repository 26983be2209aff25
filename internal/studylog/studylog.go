// Package studylog records user-study events as per-session plain text files.
// The observer is passed explicitly to the services that emit events; when a
// study is not running, the no-op observer takes its place.
package studylog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hikkinomore/buddy-server/internal/model/skill"
)

// Observer receives conversation events worth keeping for later analysis.
// Implementations must be safe for concurrent use.
type Observer interface {
	SessionStart(userID, sessionID string)
	UserMessage(userID, sessionID, message string)
	AssistantMessage(userID, sessionID, message string)
	Judgment(userID, sessionID string, j skill.Judgment)
	Event(userID, sessionID, event string)
	Error(userID, sessionID, msg string)
}

// Nop returns an observer that discards everything.
func Nop() Observer { return nopObserver{} }

type nopObserver struct{}

func (nopObserver) SessionStart(string, string)             {}
func (nopObserver) UserMessage(string, string, string)      {}
func (nopObserver) AssistantMessage(string, string, string) {}
func (nopObserver) Judgment(string, string, skill.Judgment) {}
func (nopObserver) Event(string, string, string)            {}
func (nopObserver) Error(string, string, string)            {}

// FileObserver appends human-readable lines to one log file per user per
// session under baseDir/users/<user>/<session>.log.
type FileObserver struct {
	baseDir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileObserver prepares the base directory.
func NewFileObserver(baseDir string) (*FileObserver, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create study log directory")
	}
	return &FileObserver{baseDir: baseDir, files: make(map[string]*os.File)}, nil
}

// Close closes every open session file.
func (o *FileObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var firstErr error
	for key, f := range o.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(o.files, key)
	}
	return firstErr
}

func (o *FileObserver) SessionStart(userID, sessionID string) {
	o.write(userID, sessionID, "=== SESSION START ===")
	o.write(userID, sessionID, "User ID: "+userID)
	o.write(userID, sessionID, "Session ID: "+sessionID)
}

func (o *FileObserver) UserMessage(userID, sessionID, message string) {
	o.write(userID, sessionID, "USER: "+flatten(message))
}

func (o *FileObserver) AssistantMessage(userID, sessionID, message string) {
	o.write(userID, sessionID, "ASSISTANT: "+flatten(message))
}

func (o *FileObserver) Judgment(userID, sessionID string, j skill.Judgment) {
	name := "None"
	if j.SkillType != nil {
		name = *j.SkillType
	}
	o.write(userID, sessionID, "SKILL JUDGMENT:")
	o.write(userID, sessionID, fmt.Sprintf("  Skill Type: %s", name))
	o.write(userID, sessionID, fmt.Sprintf("  Score: %.2f", j.Score))
	o.write(userID, sessionID, fmt.Sprintf("  Confidence: %.2f", j.Confidence))
	o.write(userID, sessionID, "  Reason: "+flatten(j.Reason))
}

func (o *FileObserver) Event(userID, sessionID, event string) {
	o.write(userID, sessionID, "EVENT: "+flatten(event))
}

func (o *FileObserver) Error(userID, sessionID, msg string) {
	o.write(userID, sessionID, "ERROR: "+flatten(msg))
}

func (o *FileObserver) write(userID, sessionID, line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.sessionFile(userID, sessionID)
	if err != nil {
		return
	}
	stamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] %s\n", stamp, line)
}

// sessionFile returns the open file for the session, creating it on first use.
// Callers hold o.mu.
func (o *FileObserver) sessionFile(userID, sessionID string) (*os.File, error) {
	key := userID + "_" + sessionID
	if f, ok := o.files[key]; ok {
		return f, nil
	}

	dir := filepath.Join(o.baseDir, "users", userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, sessionID+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	o.files[key] = f
	return f, nil
}

func flatten(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " [NEWLINE] ")
}
