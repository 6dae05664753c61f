package modbuscomm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
	log "github.com/sirupsen/logrus"
)

// Controller accepts operator commands.
type Controller interface {
	ApplyControl(energy.ID, float64, time.Duration) bool
}

// Device is the register interface of a control panel slave.
type Device interface {
	Read([]Register) (map[string]float64, error)
	Write(Register, float64) error
}

// PanelConfig maps one i16 holding register per controllable source. A
// register named after the source holds -1, 0 or +1.
type PanelConfig struct {
	Poller    PollerConfig `json:"Poller"`
	Registers []Register   `json:"Registers"`
}

// Panel applies the direction registers of a hardware control panel to the
// session once per poll interval. Each applied register is written back to
// zero so a press acts once.
type Panel struct {
	device     Device
	controller Controller
	registers  []Register
	interval   time.Duration
	stop       context.CancelFunc
	done       <-chan struct{}
}

// LoadPanel reads the JSON panel config at configPath and dials nothing
// until the first poll.
func LoadPanel(configPath string, controller Controller) (*Panel, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := PanelConfig{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, fmt.Errorf("modbus config %s: %w", configPath, err)
	}
	return NewPanel(NewPoller(cfg.Poller), controller, cfg.Registers, time.Duration(cfg.Poller.Interval)*time.Millisecond)
}

// NewPanel validates that every register names a source and carries i16.
func NewPanel(device Device, controller Controller, regs []Register, interval time.Duration) (*Panel, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	for _, reg := range regs {
		if reg.DataType != i16 {
			return nil, fmt.Errorf("register %s: direction registers are i16, got %s", reg.Name, reg.DataType)
		}
		if reg.Name == "" {
			return nil, fmt.Errorf("register at %d has no source name", reg.Address)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Panel{
		device:     device,
		controller: controller,
		registers:  regs,
		interval:   interval,
		stop:       cancel,
		done:       ctx.Done(),
	}, nil
}

// Poll reads every register once and returns the number of controls applied.
func (p *Panel) Poll() (int, error) {
	values, err := p.device.Read(p.registers)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, reg := range p.registers {
		v := values[reg.Name]
		if v == 0 {
			continue
		}
		if p.controller.ApplyControl(energy.ID(reg.Name), v, p.interval) {
			applied++
		}
		if reg.writable() {
			if err := p.device.Write(reg, 0); err != nil {
				return applied, err
			}
		}
	}
	return applied, nil
}

// Stop ends Process. It is safe to call more than once.
func (p *Panel) Stop() {
	p.stop()
}

// Process polls on the configured interval until Stop.
func (p *Panel) Process() {
	log.Println("[Modbus] Process Started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			if _, err := p.Poll(); err != nil {
				log.Println("[Modbus]", err)
			}
		case <-p.done:
			break loop
		}
	}
	log.Println("[Modbus] Process Shutdown")
}
