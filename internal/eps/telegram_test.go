package eps

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTelegram(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		format  TelegramFormat
		want    SensorSample
		wantErr error
	}{
		{
			name:   "three fields",
			line:   "SPD:5.0,ANG:-70,TRQ:2500",
			format: Format3Field,
			want:   SensorSample{Speed: 5, Angle: -70, Torque: 2500},
		},
		{
			name:   "four fields",
			line:   "SPD:12.5,ANG:30,TRQ:2700,CUR:1500",
			format: Format4Field,
			want:   SensorSample{Speed: 12.5, Angle: 30, Torque: 2700, Current: 1500, HasCurrent: true},
		},
		{
			name:   "whitespace and newline",
			line:   "SPD: 5.0 ,ANG:\t-70,TRQ: 2500\r\n",
			format: Format3Field,
			want:   SensorSample{Speed: 5, Angle: -70, Torque: 2500},
		},
		{
			name:   "inclusive limits",
			line:   "SPD:60,ANG:-600,TRQ:3100,CUR:0",
			format: Format4Field,
			want:   SensorSample{Speed: 60, Angle: -600, Torque: 3100, Current: 0, HasCurrent: true},
		},
		{name: "four fields for three field format", line: "SPD:5,ANG:1,TRQ:2500,CUR:10", format: Format3Field, wantErr: ErrParse},
		{name: "three fields for four field format", line: "SPD:5,ANG:1,TRQ:2500", format: Format4Field, wantErr: ErrParse},
		{name: "missing colon", line: "SPD5,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "two colons", line: "SPD:5:1,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "non numeric", line: "SPD:fast,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "empty value", line: "SPD:,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "hex float", line: "SPD:0x1p3,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "signed hex float", line: "SPD:5,ANG:-0X1P2,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "underscore separator", line: "SPD:5,ANG:1,TRQ:2_500", format: Format3Field, wantErr: ErrParse},
		{name: "nan", line: "SPD:NaN,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrParse},
		{name: "empty line", line: "", format: Format3Field, wantErr: ErrParse},
		{name: "unsupported format", line: "SPD:5,ANG:1", format: TelegramFormat(2), wantErr: ErrParse},
		{name: "speed too high", line: "SPD:60.1,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrRange},
		{name: "negative speed", line: "SPD:-1,ANG:1,TRQ:2500", format: Format3Field, wantErr: ErrRange},
		{name: "angle too low", line: "SPD:5,ANG:-601,TRQ:2500", format: Format3Field, wantErr: ErrRange},
		{name: "torque too low", line: "SPD:5,ANG:1,TRQ:2299", format: Format3Field, wantErr: ErrRange},
		{name: "exponent", line: "SPD:5e0,ANG:-7E1,TRQ:2.5e3", format: Format3Field, want: SensorSample{Speed: 5, Angle: -70, Torque: 2500}},
		{name: "torque infinite", line: "SPD:5,ANG:1,TRQ:+Inf", format: Format3Field, wantErr: ErrRange},
		{name: "current too high", line: "SPD:5,ANG:1,TRQ:2500,CUR:10001", format: Format4Field, wantErr: ErrRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTelegram(tt.line, tt.format)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseTelegram(%q) error = %v, want %v", tt.line, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTelegram(%q) unexpected error: %v", tt.line, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTelegram(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestTelegramFormatString(t *testing.T) {
	if got := Format4Field.String(); got != "SPD,ANG,TRQ,CUR" {
		t.Errorf("Format4Field.String() = %q", got)
	}
	if got := TelegramFormat(7).String(); got != "TelegramFormat(7)" {
		t.Errorf("TelegramFormat(7).String() = %q", got)
	}
}
