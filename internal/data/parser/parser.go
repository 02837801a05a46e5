// Package parser decodes browser bridge signal streams: one JSON object per
// line, an envelope of type/ts/rel_time plus a type-specific data object.
package parser

import (
	"bufio"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Parser decodes signal stream files and byte slices.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine decodes one signal line. The envelope fields are extracted with
// gjson because the data object's shape varies per signal type; the typed
// payload is then decoded with sonic into exactly one union member.
func ParseLine(line []byte) (*model.Signal, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("invalid JSON")
	}

	root := gjson.ParseBytes(line)
	sigType := root.Get("type").String()
	if sigType == "" {
		return nil, fmt.Errorf("missing signal type")
	}

	sig := &model.Signal{
		Type:      model.SignalType(sigType),
		Timestamp: root.Get("ts").Int(),
		RelTime:   root.Get("rel_time").Float(),
	}

	data := root.Get("data")
	raw := []byte(data.Raw)
	if !data.Exists() {
		raw = []byte("{}")
	}

	var err error
	switch sig.Type {
	case model.SignalNavigation:
		sig.Navigation = &model.NavigationSignal{}
		err = sonic.Unmarshal(raw, sig.Navigation)
	case model.SignalNavigationTiming:
		sig.NavigationTiming = &model.NavigationTimingSignal{}
		err = sonic.Unmarshal(raw, sig.NavigationTiming)
	case model.SignalInteraction:
		sig.Interaction = &model.InteractionSignal{}
		err = sonic.Unmarshal(raw, sig.Interaction)
	case model.SignalResource:
		sig.Resource = &model.ResourceEntrySignal{}
		err = sonic.Unmarshal(raw, sig.Resource)
	case model.SignalPaint:
		sig.Paint = &model.PaintSignal{}
		err = sonic.Unmarshal(raw, sig.Paint)
	case model.SignalLargestPaint:
		sig.LargestPaint = &model.LargestPaintSignal{}
		err = sonic.Unmarshal(raw, sig.LargestPaint)
	case model.SignalFirstInput:
		sig.FirstInput = &model.FirstInputSignal{}
		err = sonic.Unmarshal(raw, sig.FirstInput)
	case model.SignalLayoutShift:
		sig.LayoutShift = &model.LayoutShiftSignal{}
		err = sonic.Unmarshal(raw, sig.LayoutShift)
	case model.SignalEventTiming:
		sig.EventTiming = &model.EventTimingSignal{}
		err = sonic.Unmarshal(raw, sig.EventTiming)
	case model.SignalNetwork:
		sig.Network = &model.NetworkSignal{}
		err = sonic.Unmarshal(raw, sig.Network)
	case model.SignalMutation:
		sig.Mutation = &model.MutationSignal{}
		err = sonic.Unmarshal(raw, sig.Mutation)
	case model.SignalLifecycle:
		sig.Lifecycle = &model.LifecycleSignal{}
		err = sonic.Unmarshal(raw, sig.Lifecycle)
	case model.SignalError:
		sig.Error = &model.ErrorSignal{}
		err = sonic.Unmarshal(raw, sig.Error)
	case model.SignalCustomEvent:
		sig.CustomEvent = &model.CustomEventSignal{}
		err = sonic.Unmarshal(raw, sig.CustomEvent)
	default:
		return nil, fmt.Errorf("unknown signal type %q", sigType)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", sigType, err)
	}
	return sig, nil
}

// ParseFile parses a whole signal stream file, skipping malformed lines.
func (p *Parser) ParseFile(path string) ([]*model.Signal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var signals []*model.Signal
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineCount := 0
	for scanner.Scan() {
		lineCount++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		sig, err := ParseLine(line)
		if err != nil {
			util.LogDebugf("Skip invalid signal line %s:%d - %v", path, lineCount, err)
			continue
		}
		signals = append(signals, sig)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return signals, nil
}
