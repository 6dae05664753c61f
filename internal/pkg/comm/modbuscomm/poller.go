package modbuscomm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/goburrow/modbus"
)

type dataType string

const (
	u16 dataType = "u16"
	u32 dataType = "u32"
	u64 dataType = "u64"
	i16 dataType = "i16"
	i32 dataType = "i32"
	i64 dataType = "i64"
	f32 dataType = "f32"
	f64 dataType = "f64"
)

// words is the number of 16 bit registers the type occupies.
func (d dataType) words() uint16 {
	switch d {
	case u32, i32, f32:
		return 2
	case u64, i64, f64:
		return 4
	default:
		return 1
	}
}

type accessType string

const (
	ro accessType = "ro"
	rw accessType = "rw"
	wo accessType = "wo"
)

type endianness string

const (
	bigEndian    endianness = "big"
	littleEndian endianness = "little"
)

// Register describes one value in the slave's register map.
type Register struct {
	Name         string     `json:"Name"`
	Address      uint16     `json:"Address"`
	DataType     dataType   `json:"DataType"`
	FunctionCode uint8      `json:"FunctionCode"`
	AccessType   accessType `json:"AccessType"`
	Endianness   endianness `json:"Endianness"`
}

func (r Register) readable() bool {
	return r.AccessType != wo
}

func (r Register) writable() bool {
	return r.AccessType == rw || r.AccessType == wo
}

func order(b []byte, e endianness) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	if e == littleEndian {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// encode converts v to the register's wire bytes. Integer types truncate.
func encode(v float64, reg Register) []byte {
	b := make([]byte, reg.DataType.words()*2)
	switch reg.DataType {
	case u16:
		binary.BigEndian.PutUint16(b, uint16(v))
	case i16:
		binary.BigEndian.PutUint16(b, uint16(int16(v)))
	case u32:
		binary.BigEndian.PutUint32(b, uint32(v))
	case i32:
		binary.BigEndian.PutUint32(b, uint32(int32(v)))
	case f32:
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	case u64:
		binary.BigEndian.PutUint64(b, uint64(v))
	case i64:
		binary.BigEndian.PutUint64(b, uint64(int64(v)))
	case f64:
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
	default:
		return nil
	}
	return order(b, reg.Endianness)
}

// decode converts the register's wire bytes to a float64.
func decode(b []byte, reg Register) float64 {
	if len(b) < int(reg.DataType.words()*2) {
		return 0
	}
	b = order(b[:reg.DataType.words()*2], reg.Endianness)
	switch reg.DataType {
	case u16:
		return float64(binary.BigEndian.Uint16(b))
	case i16:
		return float64(int16(binary.BigEndian.Uint16(b)))
	case u32:
		return float64(binary.BigEndian.Uint32(b))
	case i32:
		return float64(int32(binary.BigEndian.Uint32(b)))
	case f32:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case u64:
		return float64(binary.BigEndian.Uint64(b))
	case i64:
		return float64(int64(binary.BigEndian.Uint64(b)))
	case f64:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	}
	return 0
}

func findIndexByName(regs []Register, name string) (int, error) {
	for i, reg := range regs {
		if reg.Name == name {
			return i, nil
		}
	}
	return -1, errors.New("register name not found in register array")
}

// PollerConfig addresses a modbus TCP slave. Timeout and Interval are in
// milliseconds.
type PollerConfig struct {
	IP        string `json:"IP"`
	Port      string `json:"Port"`
	SlaveID   byte   `json:"SlaveID"`
	Timeout   int    `json:"Timeout"`
	Interval  int    `json:"Interval"`
	KeepAlive bool   `json:"KeepAlive"`
}

// Poller reads and writes registers on one slave.
type Poller struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	config  PollerConfig
}

// NewPoller returns a poller; the connection opens on first use.
func NewPoller(cfg PollerConfig) *Poller {
	handler := modbus.NewTCPClientHandler(net.JoinHostPort(cfg.IP, cfg.Port))
	handler.Timeout = time.Duration(cfg.Timeout) * time.Millisecond
	handler.SlaveId = cfg.SlaveID
	if cfg.KeepAlive {
		handler.IdleTimeout = 10 * time.Duration(cfg.Interval) * time.Millisecond
	}
	return &Poller{
		handler: handler,
		client:  modbus.NewClient(handler),
		config:  cfg,
	}
}

// Read returns the decoded value of each readable register by name.
func (p *Poller) Read(regs []Register) (map[string]float64, error) {
	values := make(map[string]float64, len(regs))
	for _, reg := range regs {
		if !reg.readable() {
			continue
		}
		var b []byte
		var err error
		switch reg.FunctionCode {
		case 4:
			b, err = p.client.ReadInputRegisters(reg.Address, reg.DataType.words())
		default:
			b, err = p.client.ReadHoldingRegisters(reg.Address, reg.DataType.words())
		}
		if err != nil {
			return values, err
		}
		values[reg.Name] = decode(b, reg)
	}
	if !p.config.KeepAlive {
		p.handler.Close()
	}
	return values, nil
}

// Write stores v in a writable register.
func (p *Poller) Write(reg Register, v float64) error {
	if !reg.writable() {
		return fmt.Errorf("register %s is %s", reg.Name, reg.AccessType)
	}
	_, err := p.client.WriteMultipleRegisters(reg.Address, reg.DataType.words(), encode(v, reg))
	return err
}

// Close drops the connection.
func (p *Poller) Close() error {
	return p.handler.Close()
}
