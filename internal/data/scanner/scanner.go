// Package scanner feeds the engine from signal stream files: a one-shot
// reader for replay and an fsnotify-driven tailer for live collection.
package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/data/parser"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// ListStreamFiles returns the .jsonl stream files under dir, sorted by name
// so replay order is deterministic.
func ListStreamFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && filepath.Ext(p) == ".jsonl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// StreamWatcher tails signal stream files and emits decoded signals in file
// order. Each file's read offset is tracked so appended lines are consumed
// incrementally.
type StreamWatcher struct {
	watcher *fsnotify.Watcher
	signals chan *model.Signal
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	offsets map[string]int64
}

// NewStreamWatcher watches dir for .jsonl stream files. With readExisting
// set, content already present is emitted first.
func NewStreamWatcher(dir string, readExisting bool) (*StreamWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &StreamWatcher{
		watcher: watcher,
		signals: make(chan *model.Signal, 256),
		done:    make(chan struct{}),
		offsets: make(map[string]int64),
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	if readExisting {
		files, err := ListStreamFiles(dir)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		for _, f := range files {
			w.drainFile(f)
		}
	} else {
		// Skip existing content: record current sizes as offsets.
		files, _ := ListStreamFiles(dir)
		for _, f := range files {
			if info, err := os.Stat(f); err == nil {
				w.offsets[f] = info.Size()
			}
		}
	}

	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Signals returns the decoded signal channel.
func (w *StreamWatcher) Signals() <-chan *model.Signal {
	return w.signals
}

// Close stops watching and closes the signal channel.
func (w *StreamWatcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	close(w.signals)
	return err
}

func (w *StreamWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".jsonl" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.drainFile(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("Stream watch error: " + err.Error())
		}
	}
}

// drainFile reads newly appended lines from the stored offset and emits them.
func (w *StreamWatcher) drainFile(path string) {
	w.mu.Lock()
	offset := w.offsets[path]
	w.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		util.LogDebugf("Cannot open stream file %s: %v", path, err)
		return
	}
	defer file.Close()

	if offset > 0 {
		if _, err := file.Seek(offset, 0); err != nil {
			return
		}
	}

	reader := bufio.NewReader(file)
	consumed := offset
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// A partial trailing line stays unconsumed until the writer
			// finishes it.
			break
		}
		consumed += int64(len(line))
		trimmed := trimNewline(line)
		if len(trimmed) == 0 {
			continue
		}
		sig, perr := parser.ParseLine(trimmed)
		if perr != nil {
			util.LogDebugf("Skip invalid stream line in %s: %v", path, perr)
			continue
		}
		select {
		case w.signals <- sig:
		case <-w.done:
			return
		}
	}

	w.mu.Lock()
	w.offsets[path] = consumed
	w.mu.Unlock()
}

func trimNewline(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
