package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/protocol"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/slots"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/streams"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/transport"
)

// Options configure an Engine. Zero values pick the defaults noted on
// each field.
type Options struct {
	Version      string         // BOOT version, default "1.0.0"
	Mode         string         // BOOT mode, the transport kind; default "sim"
	Vars         []protocol.Var // published variable addresses for VARS/LIST
	HeartbeatMS  uint64         // heartbeat period, default 1000
	SlotReportMS uint64         // slot report period, 0 disables
}

// TapFunc observes every emitted record, after it went to the transport.
// Taps run on the engine goroutine and must not block.
type TapFunc func(nowMS uint64, record string)

// Status is a point-in-time summary of engine activity.
type Status struct {
	UptimeMS      uint64 `json:"uptimeMs"`
	ActiveStreams int    `json:"activeStreams"`
	Records       uint64 `json:"records"`
	DataRecords   uint64 `json:"dataRecords"`
	ErrorRecords  uint64 `json:"errorRecords"`
	Commands      uint64 `json:"commands"`
	Overflows     uint64 `json:"overflows"`
}

// Engine owns the whole streaming pipeline: line buffer, parser, stream
// table, slot registry, and validated accessor, tied to one transport.
// All state is confined to the goroutine calling Start and Tick; nothing
// here is shared or global.
type Engine struct {
	acc   *mem.Accessor
	reg   *slots.Registry
	table *streams.Table
	tr    transport.Transport
	opts  Options

	lb     protocol.LineBuffer
	taps   []TapFunc
	now    uint64
	primed bool // first Tick fires heartbeat and slot report at once

	lastBeat  uint64
	lastSlots uint64

	recordsN   uint64
	dataN      uint64
	errorsN    uint64
	commandsN  uint64
	overflowsN uint64
}

// New assembles an engine over the given accessor, registry, and
// transport. The stream table starts empty.
func New(acc *mem.Accessor, reg *slots.Registry, tr transport.Transport, opts Options) *Engine {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Mode == "" {
		opts.Mode = "sim"
	}
	if opts.HeartbeatMS == 0 {
		opts.HeartbeatMS = 1000
	}
	return &Engine{
		acc:   acc,
		reg:   reg,
		table: streams.NewTable(),
		tr:    tr,
		opts:  opts,
	}
}

// Tap registers a record observer. Register before Start.
func (e *Engine) Tap(fn TapFunc) {
	e.taps = append(e.taps, fn)
}

// Start emits the startup banner. Call once, before the first Tick.
func (e *Engine) Start(now uint64) {
	e.now = now
	win := e.acc.Window()

	e.emit(protocol.Boot(e.opts.Version, e.opts.Mode))
	e.emit(protocol.Status("Memory streamer ready"))
	e.emit(protocol.Status(fmt.Sprintf("Max streams: %d, max chunk: %d bytes",
		streams.MaxStreams, protocol.MaxChunk)))
	if len(e.opts.Vars) > 0 {
		e.emit(protocol.Vars(e.opts.Vars))
	}
	e.emit(protocol.Ready())

	log.Printf("[engine] started: version=%s mode=%s window=[0x%08x,0x%08x)",
		e.opts.Version, e.opts.Mode, win.Start, win.End)
}

// Tick runs one engine pass at now: drain and apply peer commands, then
// sample due streams, then the slot report, then the heartbeat. Commands
// always apply before this tick's sampling.
func (e *Engine) Tick(now uint64) {
	e.now = now
	e.drain(now)
	e.sample(now)
	e.slotReport(now)
	e.heartbeat(now)
	e.primed = true
}

// Snapshot summarizes current activity. Call from the tick goroutine.
func (e *Engine) Snapshot(now uint64) Status {
	return Status{
		UptimeMS:      now,
		ActiveStreams: e.table.Active(),
		Records:       e.recordsN,
		DataRecords:   e.dataN,
		ErrorRecords:  e.errorsN,
		Commands:      e.commandsN,
		Overflows:     e.overflowsN,
	}
}

func (e *Engine) drain(now uint64) {
	for {
		b, ok := e.tr.TryReadByte()
		if !ok {
			return
		}
		line, complete, overflow := e.lb.Feed(b)
		if overflow {
			e.overflowsN++
			e.errorsN++
			e.emit(protocol.OverflowError())
			continue
		}
		if complete {
			e.apply(now, line)
		}
	}
}

func (e *Engine) apply(now uint64, line string) {
	req, err := protocol.Parse(line)
	if err != nil {
		verb, reason := "", protocol.ReasonInvalidParams
		var pe *protocol.ParseError
		if errors.As(err, &pe) {
			verb, reason = pe.Verb, pe.Reason
		}
		e.errorsN++
		e.emit(protocol.CommandError(verb, reason))
		return
	}
	if req == nil {
		return
	}
	e.commandsN++

	switch req.Kind {
	case protocol.KindPing:
		e.emit(protocol.Pong())
	case protocol.KindStream:
		if err := e.table.Add(req.Addr, req.Size, req.Rate, now); err != nil {
			e.errorsN++
			e.emit(protocol.CommandError("STREAM", protocol.ErrorReason(err)))
			return
		}
		e.emit(protocol.StreamOK(req.Addr))
	case protocol.KindStop:
		if err := e.table.Remove(req.Addr); err != nil {
			e.errorsN++
			e.emit(protocol.CommandError("STOP", protocol.ErrorReason(err)))
			return
		}
		e.emit(protocol.StopOK(req.Addr))
	case protocol.KindList:
		e.emit(protocol.Vars(e.opts.Vars))
		for _, entry := range e.table.Enabled() {
			e.emit(protocol.StreamInfo(entry))
		}
	case protocol.KindHelp:
		e.emit(protocol.HelpReply())
	}
}

func (e *Engine) sample(now uint64) {
	for i := 0; i < streams.MaxStreams; i++ {
		entry, due := e.table.Due(i, now)
		if !due {
			continue
		}
		size := entry.Size
		if size > protocol.MaxChunk {
			size = protocol.MaxChunk
		}
		payload, err := e.acc.Bytes(entry.Addr, size)
		if err != nil {
			e.errorsN++
			e.emit(protocol.SampleError(entry.Addr, protocol.ErrorReason(err)))
			continue
		}
		e.dataN++
		e.emit(protocol.Data(entry.Addr, payload))
	}
}

func (e *Engine) slotReport(now uint64) {
	if e.opts.SlotReportMS == 0 || e.reg.Len() == 0 {
		return
	}
	if e.primed && now-e.lastSlots < e.opts.SlotReportMS {
		return
	}
	e.lastSlots = now

	fields := make([]string, 0, e.reg.Len())
	for _, s := range e.reg.All() {
		v, err := e.reg.Read(s)
		if err != nil {
			fields = append(fields, protocol.SlotFailure(s.Name(), err))
			continue
		}
		fields = append(fields, protocol.SlotOK(s.Name(), v.String()))
	}
	e.emit(protocol.SlotReport(now, fields))
}

func (e *Engine) heartbeat(now uint64) {
	if e.primed && now-e.lastBeat < e.opts.HeartbeatMS {
		return
	}
	e.lastBeat = now
	e.emit(protocol.Heartbeat(now, e.table.Active()))
}

func (e *Engine) emit(rec string) {
	e.recordsN++
	if _, err := e.tr.Write([]byte(rec + "\n")); err != nil {
		log.Printf("[engine] write: %v", err)
	}
	for _, tap := range e.taps {
		tap(e.now, rec)
	}
}
