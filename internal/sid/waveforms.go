package sid

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	WaveLen      = 4096
	PulseWaveLen = 8192
)

// TableSet holds the combined waveform lookups. Wave30 is indexed by the
// 12-bit phase; the pulse combinations by phase plus pulse width.
type TableSet struct {
	Wave30 []byte // triangle + saw
	Wave50 []byte // triangle + pulse
	Wave60 []byte // saw + pulse
	Wave70 []byte // triangle + saw + pulse
}

func triangle12(phase int) int {
	p := phase & 0x0FFF
	if p < 2048 {
		return p << 1
	}
	return (0x0FFF - p) << 1
}

// GenerateTables builds the combined waveforms as the bitwise AND of the
// component 12-bit waves, shaped for the model.
func GenerateTables(model Model) TableSet {
	t := TableSet{
		Wave30: make([]byte, WaveLen),
		Wave50: make([]byte, PulseWaveLen),
		Wave60: make([]byte, PulseWaveLen),
		Wave70: make([]byte, PulseWaveLen),
	}
	for i := 0; i < WaveLen; i++ {
		t.Wave30[i] = shapeTo8(triangle12(i)&i, model)
	}
	for i := 0; i < PulseWaveLen; i++ {
		phase := i & 0x0FFF
		tri := triangle12(phase)
		pulse := 0
		if i < WaveLen {
			pulse = 0x0FFF
		}
		t.Wave50[i] = shapeTo8(tri&pulse, model)
		t.Wave60[i] = shapeTo8(phase&pulse, model)
		t.Wave70[i] = shapeTo8(tri&phase&pulse, model)
	}
	if model == MOS6581 {
		for _, w := range [][]byte{t.Wave30, t.Wave50, t.Wave60, t.Wave70} {
			smoothInPlace(w, 0.35)
		}
	}
	return t
}

func shapeTo8(v12 int, model Model) byte {
	v := math.Max(0, math.Min(1, float64(v12)/4095.0))
	if model == MOS6581 {
		v = math.Min(1, math.Pow(v, 1.25)+0.015)
	}
	return clampByte(math.Round(v * 255))
}

// smoothInPlace runs a one-pole smoother over the table, seeded with the
// last element so the wrap-around is continuous.
func smoothInPlace(data []byte, alpha float64) {
	if len(data) == 0 {
		return
	}
	prev := float64(data[len(data)-1])
	for i, b := range data {
		prev += alpha * (float64(b) - prev)
		data[i] = clampByte(math.Round(prev))
	}
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// DefaultTablesDir is searched, relative to the working directory, when no
// table path is configured.
const DefaultTablesDir = "waveforms"

// LoadTables returns the generated tables for model, overridden per table by
// any external data found at path. The path is either a directory of
// waveformNN_MMMM.bin files or a C header defining waveformNN_MMMM arrays.
// An empty path falls back to DefaultTablesDir when that directory exists.
// A missing path yields the generated tables.
func LoadTables(model Model, path string) (TableSet, error) {
	generated := GenerateTables(model)
	if path == "" {
		if info, err := os.Stat(DefaultTablesDir); err != nil || !info.IsDir() {
			return generated, nil
		}
		path = DefaultTablesDir
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return generated, nil
		}
		return generated, errors.Wrapf(err, "stat waveform tables %s", path)
	}
	var ext TableSet
	if info.IsDir() {
		ext, err = tablesFromDir(path, model)
	} else {
		ext, err = tablesFromHeaderFile(path, model)
	}
	if err != nil {
		return generated, err
	}
	return merge(generated, ext), nil
}

func merge(base, override TableSet) TableSet {
	pick := func(o, b []byte) []byte {
		if o != nil {
			return o
		}
		return b
	}
	return TableSet{
		Wave30: pick(override.Wave30, base.Wave30),
		Wave50: pick(override.Wave50, base.Wave50),
		Wave60: pick(override.Wave60, base.Wave60),
		Wave70: pick(override.Wave70, base.Wave70),
	}
}

func modelSuffix(m Model) string {
	if m == MOS8580 {
		return "8580"
	}
	return "6581"
}

func tableLen(id string) int {
	if id == "30" {
		return WaveLen
	}
	return PulseWaveLen
}

func tablesFromDir(dir string, model Model) (TableSet, error) {
	var out TableSet
	slots := map[string]*[]byte{"30": &out.Wave30, "50": &out.Wave50, "60": &out.Wave60, "70": &out.Wave70}
	for id, slot := range slots {
		name := filepath.Join(dir, "waveform"+id+"_"+modelSuffix(model)+".bin")
		data, err := os.ReadFile(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return TableSet{}, errors.Wrapf(err, "read %s", name)
		}
		if len(data) == tableLen(id) {
			*slot = data
		}
	}
	return out, nil
}

func tablesFromHeaderFile(path string, model Model) (TableSet, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return TableSet{}, errors.Wrapf(err, "read %s", path)
	}
	return ParseHeaderTables(string(text), model), nil
}

var headerNumber = regexp.MustCompile(`0[xX][0-9a-fA-F]+|\d+`)

// ParseHeaderTables extracts waveformNN_MMMM[...] = { ... } arrays for model.
// Arrays with the wrong element count are ignored.
func ParseHeaderTables(text string, model Model) TableSet {
	var out TableSet
	slots := map[string]*[]byte{"30": &out.Wave30, "50": &out.Wave50, "60": &out.Wave60, "70": &out.Wave70}
	for id, slot := range slots {
		name := "waveform" + id + "_" + modelSuffix(model)
		re := regexp.MustCompile(`(?s)` + name + `\s*\[[^\]]*\]\s*=\s*\{(.*?)\}`)
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		want := tableLen(id)
		data := make([]byte, 0, want)
		for _, tok := range headerNumber.FindAllString(m[1], -1) {
			if len(data) == want {
				break
			}
			var v uint64
			var err error
			if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
				v, err = strconv.ParseUint(tok[2:], 16, 32)
			} else {
				v, err = strconv.ParseUint(tok, 10, 32)
			}
			if err != nil {
				break
			}
			data = append(data, byte(v))
		}
		if len(data) == want {
			*slot = data
		}
	}
	return out
}
