// Package loader 读取并监听股票池清单（universe manifest）。
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Gfz-arka/MFE-5250/internal/logger"
)

// universeSchema 约束清单结构：symbols 必须是非空、不重复的字符串数组。
const universeSchema = `{
  "type": "object",
  "required": ["symbols"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "symbols": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1}
    }
  },
  "additionalProperties": false
}`

// Universe 是一个股票池清单，Symbols 保持文件中的顺序。
type Universe struct {
	Name        string   `yaml:"name" json:"name,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Symbols     []string `yaml:"symbols" json:"symbols"`
}

// UniverseSnapshot 对外暴露的只读快照。
type UniverseSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Universe Universe
}

// ChangeListener 在清单变更时被调用。
type ChangeListener func(UniverseSnapshot)

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("universe.json", strings.NewReader(universeSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("universe.json")
	})
	return schemaCompiled, schemaErr
}

// ReadUniverse 读取并校验清单：未知字段报错，结构需满足 schema。
func ReadUniverse(path string) (Universe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Universe{}, fmt.Errorf("read universe failed: %w", err)
	}
	return ParseUniverse(raw)
}

// ParseUniverse 解析 YAML 清单内容。
func ParseUniverse(raw []byte) (Universe, error) {
	var u Universe
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&u); err != nil {
		return Universe{}, fmt.Errorf("parse universe failed: %w", err)
	}
	for i, sym := range u.Symbols {
		u.Symbols[i] = strings.TrimSpace(sym)
	}

	schema, err := compiledSchema()
	if err != nil {
		return Universe{}, fmt.Errorf("universe schema compile failed: %w", err)
	}
	// jsonschema 校验的是 JSON 形态的数据
	doc, err := json.Marshal(u)
	if err != nil {
		return Universe{}, err
	}
	var generic any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return Universe{}, err
	}
	if err := schema.Validate(generic); err != nil {
		return Universe{}, fmt.Errorf("invalid universe: %w", err)
	}
	return u, nil
}

// UniverseLoader 加载清单并在文件变更时热更新。
type UniverseLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  UniverseSnapshot
	listeners []ChangeListener
}

// NewUniverseLoader 读取清单；watch 为 true 时开始监听 FS 事件。
func NewUniverseLoader(path string, watch bool) (*UniverseLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("universe loader requires path")
	}
	l := &UniverseLoader{path: path}
	if err := l.reload(); err != nil {
		return nil, err
	}
	if watch {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read universe failed: %w", err)
		}
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := l.reload(); err != nil {
				logger.Errorf("[config] universe reload failed (%s): %v", evt.Name, err)
				return
			}
			l.notify()
		})
		v.WatchConfig()
		l.v = v
	}
	return l, nil
}

// Path 返回清单文件路径。
func (l *UniverseLoader) Path() string { return l.path }

// Snapshot 返回当前清单快照（深拷贝）。
func (l *UniverseLoader) Snapshot() UniverseSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Symbols 返回当前股票池。
func (l *UniverseLoader) Symbols() []string {
	return l.Snapshot().Universe.Symbols
}

// Subscribe 注册监听器，只在后续变更时回调。
func (l *UniverseLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

func (l *UniverseLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("[config] universe listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *UniverseLoader) reload() error {
	u, err := ReadUniverse(l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.snapshot = UniverseSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Universe: u,
	}
	l.mu.Unlock()
	logger.Infof("[config] universe reloaded %d symbols from %s", len(u.Symbols), filepath.Base(l.path))
	return nil
}

func cloneSnapshot(s UniverseSnapshot) UniverseSnapshot {
	out := s
	out.Universe.Symbols = append([]string(nil), s.Universe.Symbols...)
	return out
}
