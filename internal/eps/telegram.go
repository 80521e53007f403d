package eps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Physical limits of the EPS sensors. Samples outside these inclusive ranges
// are rejected at ingestion.
const (
	SpeedMin   = 0.0
	SpeedMax   = 60.0
	AngleMin   = -600.0
	AngleMax   = 600.0
	TorqueMin  = 2300.0
	TorqueMax  = 3100.0
	CurrentMin = 0.0
	CurrentMax = 10000.0
)

// TelegramFormat selects the field layout expected from the sensor.
type TelegramFormat int

const (
	// Format3Field is "SPD:<f>,ANG:<f>,TRQ:<f>".
	Format3Field TelegramFormat = 3
	// Format4Field is "SPD:<f>,ANG:<f>,TRQ:<f>,CUR:<f>".
	Format4Field TelegramFormat = 4
)

// Valid reports whether f is one of the supported layouts.
func (f TelegramFormat) Valid() bool {
	return f == Format3Field || f == Format4Field
}

func (f TelegramFormat) String() string {
	switch f {
	case Format3Field:
		return "SPD,ANG,TRQ"
	case Format4Field:
		return "SPD,ANG,TRQ,CUR"
	default:
		return fmt.Sprintf("TelegramFormat(%d)", int(f))
	}
}

// SensorSample is one validated telegram.
type SensorSample struct {
	Speed      float64 `json:"speed"`
	Angle      float64 `json:"angle"`
	Torque     float64 `json:"torque"`
	Current    float64 `json:"current,omitempty"`
	HasCurrent bool    `json:"has_current"`
}

// Telegram is an accepted telegram line with its arrival time.
type Telegram struct {
	ReceivedAt time.Time
	Raw        string
	Sample     SensorSample
}

// Validate checks every present field against its physical range.
func (s SensorSample) Validate() error {
	if err := checkRange("speed", s.Speed, SpeedMin, SpeedMax); err != nil {
		return err
	}
	if err := checkRange("angle", s.Angle, AngleMin, AngleMax); err != nil {
		return err
	}
	if err := checkRange("torque", s.Torque, TorqueMin, TorqueMax); err != nil {
		return err
	}
	if s.HasCurrent {
		if err := checkRange("current", s.Current, CurrentMin, CurrentMax); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s %.3f outside [%g, %g]", ErrRange, name, v, lo, hi)
	}
	return nil
}

// ParseTelegram parses one telegram line in the given format. Keys are
// positional and not checked; only the value after the single colon counts.
// Errors wrap ErrParse or ErrRange.
func ParseTelegram(line string, format TelegramFormat) (SensorSample, error) {
	if !format.Valid() {
		return SensorSample{}, fmt.Errorf("%w: unsupported format %v", ErrParse, format)
	}

	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) != int(format) {
		return SensorSample{}, fmt.Errorf("%w: got %d fields, want %d", ErrParse, len(fields), int(format))
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		if strings.Count(field, ":") != 1 {
			return SensorSample{}, fmt.Errorf("%w: field %d %q is not a key:value pair", ErrParse, i, field)
		}
		_, raw, _ := strings.Cut(field, ":")
		v, err := parseValue(strings.TrimSpace(raw))
		if err != nil || math.IsNaN(v) {
			return SensorSample{}, fmt.Errorf("%w: field %d %q is not numeric", ErrParse, i, field)
		}
		values[i] = v
	}

	s := SensorSample{
		Speed:  values[0],
		Angle:  values[1],
		Torque: values[2],
	}
	if format == Format4Field {
		s.Current = values[3]
		s.HasCurrent = true
	}
	if err := s.Validate(); err != nil {
		return SensorSample{}, err
	}
	return s, nil
}

// parseValue accepts decimal floats only. strconv also takes hex mantissas
// and underscore separators, which the sensor never sends.
func parseValue(raw string) (float64, error) {
	if strings.ContainsAny(raw, "xX_") {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(raw, 64)
}
