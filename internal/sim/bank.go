package sim

import (
	"encoding/binary"
	"math"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/protocol"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/slots"
)

// Variable offsets from the window base, each naturally aligned for its
// width. bankSize covers the whole image including padding gaps.
const (
	offCounter    = 0x00 // u32
	offTimestamp  = 0x08 // u64, raw variable without a slot kind
	offSensorTemp = 0x10 // i32, centi-°C
	offAccelX     = 0x14 // i16
	offAccelY     = 0x16 // i16
	offAccelZ     = 0x18 // i16
	offState      = 0x1a // u8
	offRSSI       = 0x1b // i8
	offVbatMV     = 0x1c // u16
	offTempC      = 0x20 // f32, °C

	bankSize = 0x24
)

var decls = []struct {
	name string
	kind slots.Kind
	off  uint32
}{
	{"counter", slots.U32, offCounter},
	{"sensor_temp", slots.I32, offSensorTemp},
	{"accel_x", slots.I16, offAccelX},
	{"accel_y", slots.I16, offAccelY},
	{"accel_z", slots.I16, offAccelZ},
	{"state", slots.U8, offState},
	{"rssi", slots.I8, offRSSI},
	{"vbat_mv", slots.U16, offVbatMV},
	{"temp_c", slots.F32, offTempC},
}

// Bank plays the role of the target firmware mutating its own memory: a
// fixed set of variables rewritten into the region on every update, so
// streamed bytes and slot reads carry live data instead of zeroes.
type Bank struct {
	region  *mem.Region
	base    uint32
	counter uint32
}

// NewBank places the variable bank at the bottom of region's window.
func NewBank(region *mem.Region) *Bank {
	return &Bank{region: region, base: region.Window().Start}
}

// Declare registers one slot per typed variable, in published order.
func (b *Bank) Declare(reg *slots.Registry) error {
	for _, d := range decls {
		if _, err := reg.Declare(d.name, d.kind, b.base+d.off); err != nil {
			return err
		}
	}
	return nil
}

// Vars returns the published name=address pairs: the typed variables in
// declaration order, then the raw timestamp.
func (b *Bank) Vars() []protocol.Var {
	out := make([]protocol.Var, 0, len(decls)+1)
	for _, d := range decls {
		out = append(out, protocol.Var{Name: d.name, Addr: b.base + d.off})
	}
	return append(out, protocol.Var{Name: "timestamp", Addr: b.base + offTimestamp})
}

// Update advances the variables to nowMS and writes the image into the
// region. The counter increments once per call; everything else is a
// pure function of nowMS, so samples are reproducible from timestamps.
func (b *Bank) Update(nowMS uint64) error {
	b.counter++

	sensorTemp := int32(2500 + (nowMS/100)%100) // 25.00-25.99 °C ramp
	accelX := int16((nowMS/10)%200) - 100       // sawtooth, ±100 milli-g
	rssi := -40 - int8((nowMS/200)%50)
	vbat := uint16(3300 + (nowMS/50)%400)

	var img [bankSize]byte
	binary.LittleEndian.PutUint32(img[offCounter:], b.counter)
	binary.LittleEndian.PutUint64(img[offTimestamp:], nowMS)
	binary.LittleEndian.PutUint32(img[offSensorTemp:], uint32(sensorTemp))
	binary.LittleEndian.PutUint16(img[offAccelX:], uint16(accelX))
	binary.LittleEndian.PutUint16(img[offAccelY:], 0)
	binary.LittleEndian.PutUint16(img[offAccelZ:], 1000) // 1 g
	img[offState] = byte((nowMS / 1000) % 5)
	img[offRSSI] = byte(rssi)
	binary.LittleEndian.PutUint16(img[offVbatMV:], vbat)
	binary.LittleEndian.PutUint32(img[offTempC:], math.Float32bits(float32(sensorTemp)/100))

	return b.region.Write(b.base, img[:])
}
