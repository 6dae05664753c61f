package modbuscomm

import (
	"math"
	"math/rand"
	"os"
	"testing"

	"gotest.tools/v3/assert"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		dt   dataType
		e    endianness
		v    float64
		want []byte
	}{
		{u64, bigEndian, 1234, []byte{0, 0, 0, 0, 0, 0, 4, 210}},
		{u64, littleEndian, 1234, []byte{210, 4, 0, 0, 0, 0, 0, 0}},
		{u32, bigEndian, 1234, []byte{0, 0, 4, 210}},
		{u32, littleEndian, 1234, []byte{210, 4, 0, 0}},
		{u16, bigEndian, 1234, []byte{4, 210}},
		{u16, littleEndian, 1234, []byte{210, 4}},
		{i64, bigEndian, 1234, []byte{0, 0, 0, 0, 0, 0, 4, 210}},
		{i32, bigEndian, -1234, []byte{255, 255, 251, 46}},
		{i32, littleEndian, -1234, []byte{46, 251, 255, 255}},
		{i16, bigEndian, -1234, []byte{251, 46}},
		{i16, littleEndian, -1234, []byte{46, 251}},
		{f32, bigEndian, -1234, []byte{196, 154, 64, 0}},
		{f64, bigEndian, -1234, []byte{192, 147, 72, 0, 0, 0, 0, 0}},
	}
	for _, c := range cases {
		reg := Register{"test", 0, c.dt, 3, ro, c.e}
		got := encode(c.v, reg)
		t.Logf("float64: [%v] to %s %s-endian []bytes: %v", c.v, c.dt, c.e, got)
		assert.DeepEqual(t, got, c.want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	cases := []struct {
		dt    dataType
		scale float64
	}{
		{u16, 65535},
		{u32, 4294967295},
		{i16, -32767},
		{i32, -2147483647},
		{f64, -32767},
	}
	for _, c := range cases {
		for _, e := range []endianness{bigEndian, littleEndian} {
			reg := Register{"test", 0, c.dt, 3, ro, e}
			v := rng.Float64() * c.scale
			got := decode(encode(v, reg), reg)
			t.Logf("%s %s-endian: [%v] -> [%v]", c.dt, e, v, got)
			if c.dt == f64 {
				assert.Equal(t, got, v)
			} else {
				assert.Equal(t, got, math.Trunc(v))
			}
		}
	}

	reg := Register{"test", 0, f32, 3, ro, bigEndian}
	assert.Equal(t, decode(encode(-1234.5, reg), reg), -1234.5)
}

func TestDecodeShortBuffer(t *testing.T) {
	reg := Register{"test", 0, u32, 3, ro, bigEndian}
	assert.Equal(t, decode([]byte{1}, reg), 0.0)
}

func TestFindRegisterByName(t *testing.T) {
	testRegs := []Register{
		{"test1", 0, u16, 3, ro, bigEndian},
		{"test2", 1, u32, 3, ro, bigEndian},
		{"test3", 3, u64, 3, ro, bigEndian},
	}

	i, err := findIndexByName(testRegs, "test2")
	assert.NilError(t, err)
	assert.Equal(t, testRegs[i].Name, "test2")
	assert.Equal(t, testRegs[i].Address, uint16(1))
	assert.Equal(t, testRegs[i].DataType, u32)
	assert.Equal(t, testRegs[i].FunctionCode, uint8(3))
	assert.Equal(t, testRegs[i].AccessType, ro)
	assert.Equal(t, testRegs[i].Endianness, bigEndian)
}

func TestFindRegisterByNameFail(t *testing.T) {
	testRegs := []Register{
		{"test1", 0, u16, 3, wo, bigEndian},
		{"test2", 1, u32, 3, wo, bigEndian},
	}

	i, err := findIndexByName(testRegs, "test42")
	assert.Error(t, err, "register name not found in register array")
	assert.Equal(t, i, -1)
}

func TestWriteRejectsReadOnly(t *testing.T) {
	poller := NewPoller(PollerConfig{"127.0.0.1", "5020", 0x01, 100, 500, false})
	err := poller.Write(Register{"test", 0, i16, 3, ro, bigEndian}, 1)
	assert.ErrorContains(t, err, "is ro")
}

func TestPoller(t *testing.T) {
	addr := os.Getenv("GRIDBALANCE_MODBUS_IP")
	if testing.Short() || addr == "" {
		t.Skip("set GRIDBALANCE_MODBUS_IP to poll a modbus slave")
	}

	poller := NewPoller(PollerConfig{addr, "5020", 0x01, 100, 500, true})
	defer poller.Close()
	regs := []Register{
		{"test1", 0, u16, 3, rw, bigEndian},
		{"test2", 1, u16, 3, rw, bigEndian},
		{"test3", 2, u16, 3, rw, bigEndian},
	}

	resp, err := poller.Read(regs)
	t.Logf("\nresponse: %v\n error: %v", resp, err)
	assert.NilError(t, err)
	assert.Equal(t, len(resp), 3)
}

func TestPollerFailsWithoutSlave(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dial in short mode")
	}
	poller := NewPoller(PollerConfig{"127.0.0.1", "1", 0x01, 100, 500, false})
	_, err := poller.Read([]Register{{"test1", 0, u16, 3, ro, bigEndian}})
	assert.Assert(t, err != nil)
}
