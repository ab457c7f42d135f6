package payload

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "bwgen/internal/core/errors"
)

func TestParse_Data(t *testing.T) {
	tests := []struct {
		line  string
		size  int64
		unit  string
		bytes int64
	}{
		{"4|MB", 4, "MB", 4194304},
		{"4|MB\n", 4, "MB", 4194304},
		{"4|MB\r\n", 4, "MB", 4194304},
		{" 4 | mb ", 4, "MB", 4194304},
		{"2|GB", 2, "GB", 2147483648},
		{"10|kb", 10, "KB", 10240},
		{"1|B", 1, "B", 1},
		{"+3|KB", 3, "KB", 3072},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.line), func(t *testing.T) {
			req := Parse(tt.line)
			require.Equal(t, KindData, req.Kind, "err: %v", req.Err)
			assert.Equal(t, tt.size, req.Size)
			assert.Equal(t, tt.unit, req.Unit)
			assert.Equal(t, tt.bytes, req.Bytes)
			assert.NoError(t, req.Err)
		})
	}
}

func TestParse_Help(t *testing.T) {
	assert.Equal(t, KindHelp, Parse("tip").Kind)
	assert.Equal(t, KindHelp, Parse("tip\n").Kind)
	assert.Equal(t, KindHelp, Parse("  tip  ").Kind)
	assert.Equal(t, KindInvalid, Parse("TIP").Kind)
	assert.Equal(t, KindInvalid, Parse("tips").Kind)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		line string
		code coreerrors.ErrorCode
	}{
		{"", coreerrors.CodeInvalidRequest},
		{"hello", coreerrors.CodeInvalidRequest},
		{"4", coreerrors.CodeInvalidRequest},
		{"4|MB|extra", coreerrors.CodeInvalidRequest},
		{"abc|MB", coreerrors.CodeInvalidRequest},
		{"4.5|MB", coreerrors.CodeInvalidRequest},
		{"|MB", coreerrors.CodeInvalidRequest},
		{"5|TB", coreerrors.CodeUnknownUnit},
		{"4|", coreerrors.CodeUnknownUnit},
		{"0|MB", coreerrors.CodeInvalidParam},
		{"-1|MB", coreerrors.CodeInvalidParam},
		{"9999999999999|GB", coreerrors.CodeInvalidParam},
		{"9|GB", coreerrors.CodeQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			req := Parse(tt.line)
			assert.Equal(t, KindInvalid, req.Kind)
			require.Error(t, req.Err)
			assert.Equal(t, tt.code, coreerrors.GetCode(req.Err), req.Err.Error())
			assert.Zero(t, req.Bytes)
		})
	}
}

func TestParser_DefaultUnit(t *testing.T) {
	p := NewParser(ParserConfig{Units: []string{"MB"}, DefaultUnit: "mb"})

	req := p.Parse("4")
	require.Equal(t, KindData, req.Kind)
	assert.Equal(t, int64(4<<20), req.Bytes)

	req = p.Parse("4|MB")
	assert.Equal(t, KindData, req.Kind)

	req = p.Parse("4|KB")
	assert.Equal(t, KindInvalid, req.Kind)
	assert.True(t, coreerrors.IsCode(req.Err, coreerrors.CodeUnknownUnit))

	assert.Equal(t, KindInvalid, p.Parse("").Kind)
	assert.Equal(t, "Inform <size>|<unit> - e.g: 4|MB\nUnits available (MB)\n\n", p.HelpText())
}

func TestParser_Ceiling(t *testing.T) {
	p := NewParser(ParserConfig{Units: AllUnits, MaxBytes: 1 << 20})
	assert.Equal(t, KindData, p.Parse("1|MB").Kind)
	assert.Equal(t, KindInvalid, p.Parse("1025|KB").Kind)

	unlimited := NewParser(ParserConfig{Units: AllUnits})
	assert.Equal(t, KindData, unlimited.Parse("100|GB").Kind)
}

func TestHelpText(t *testing.T) {
	assert.Equal(t, "Inform <size>|<unit> - e.g: 4|MB\nUnits available (GB, MB, KB, B)\n\n", HelpText())

	p := NewParser(ParserConfig{Units: []string{"kb", "B", "TB", "KB"}})
	assert.Equal(t, []string{"KB", "B"}, p.Units())
	assert.Equal(t, "Inform <size>|<unit> - e.g: 4|KB\nUnits available (KB, B)\n\n", p.HelpText())
}

func TestRequest_String(t *testing.T) {
	assert.Equal(t, "4|MB", Parse("4|mb").String())
	assert.Equal(t, "tip", Parse("tip").String())
	assert.Equal(t, "invalid", Parse("x").String())
	assert.Equal(t, "data", KindData.String())
}

func TestParser_ConcurrentUse(t *testing.T) {
	p := NewParser(DefaultParserConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, int64(4096), p.Parse("4|KB").Bytes)
			}
		}()
	}
	wg.Wait()
}
