package payload

import (
	"fmt"
	"strconv"
	"strings"

	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
)

// Kind 请求行类别
type Kind int

const (
	KindInvalid Kind = iota
	KindHelp
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindHelp:
		return "help"
	case KindData:
		return "data"
	default:
		return "invalid"
	}
}

// Request 单个请求行的解析结果
type Request struct {
	Kind  Kind
	Size  int64
	Unit  string
	Bytes int64
	// Err KindInvalid 的具体原因，仅用于日志
	// 客户端始终只看到固定的错误文本
	Err error
}

func (r Request) String() string {
	switch r.Kind {
	case KindHelp:
		return constants.TipCommand
	case KindData:
		return fmt.Sprintf("%d|%s", r.Size, r.Unit)
	default:
		return "invalid"
	}
}

// ParserConfig 解析器配置
type ParserConfig struct {
	// Units 允许的单位，顺序与帮助文本一致
	Units []string
	// DefaultUnit 非空时，裸 "<size>" 按该单位解析
	DefaultUnit string
	// MaxBytes 单次请求字节上限，0 表示不限
	MaxBytes int64
}

// DefaultParserConfig 默认配置：全部单位，上限 8 GiB
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Units:    append([]string(nil), AllUnits...),
		MaxBytes: constants.DefaultMaxRequestBytes,
	}
}

// Parser 校验 "<size>|<unit>" 或 "tip" 形式的请求行
// 构造后不可变，可并发使用
type Parser struct {
	units       []string
	enabled     map[string]bool
	defaultUnit string
	maxBytes    int64
	help        string
}

// NewParser 创建解析器，cfg 中的未知单位被忽略
func NewParser(cfg ParserConfig) *Parser {
	p := &Parser{
		enabled:     make(map[string]bool, len(cfg.Units)),
		defaultUnit: strings.ToUpper(cfg.DefaultUnit),
		maxBytes:    cfg.MaxBytes,
	}
	for _, u := range cfg.Units {
		u = strings.ToUpper(strings.TrimSpace(u))
		if !KnownUnit(u) || p.enabled[u] {
			continue
		}
		p.enabled[u] = true
		p.units = append(p.units, u)
	}
	p.help = buildHelp(p.units)
	return p
}

var defaultParser = NewParser(DefaultParserConfig())

// Parse 使用默认解析器解析请求行
func Parse(line string) Request {
	return defaultParser.Parse(line)
}

// HelpText 默认帮助文本
func HelpText() string {
	return defaultParser.HelpText()
}

// HelpText 列出已启用单位的帮助文本
func (p *Parser) HelpText() string {
	return p.help
}

// Units 已启用的单位，按显示顺序
func (p *Parser) Units() []string {
	return append([]string(nil), p.units...)
}

// Parse 解析单个请求行
// 忽略首尾空白和结尾的 CR/LF，单位不区分大小写
func (p *Parser) Parse(line string) Request {
	trimmed := strings.TrimSpace(line)
	if trimmed == constants.TipCommand {
		return Request{Kind: KindHelp}
	}

	parts := strings.Split(trimmed, constants.RequestSeparator)
	var sizeTok, unitTok string
	switch {
	case len(parts) == 2:
		sizeTok, unitTok = parts[0], parts[1]
	case len(parts) == 1 && p.defaultUnit != "" && trimmed != "":
		sizeTok, unitTok = parts[0], p.defaultUnit
	default:
		return invalid(coreerrors.Newf(coreerrors.CodeInvalidRequest, "expected <size>|<unit>, got %q", trimmed))
	}

	size, err := strconv.ParseInt(strings.TrimSpace(sizeTok), 10, 64)
	if err != nil {
		return invalid(coreerrors.Wrapf(err, coreerrors.CodeInvalidRequest, "size %q is not an integer", sizeTok))
	}

	unit := strings.ToUpper(strings.TrimSpace(unitTok))
	if !p.enabled[unit] {
		return invalid(coreerrors.Newf(coreerrors.CodeUnknownUnit, "unit %q is not available", unit))
	}

	bytes := Convert(unit, size)
	if bytes <= 0 {
		return invalid(coreerrors.Newf(coreerrors.CodeInvalidParam, "size %d|%s yields no bytes", size, unit))
	}
	if p.maxBytes > 0 && bytes > p.maxBytes {
		return invalid(coreerrors.Newf(coreerrors.CodeQuotaExceeded, "%d bytes exceeds the %d byte ceiling", bytes, p.maxBytes))
	}

	return Request{Kind: KindData, Size: size, Unit: unit, Bytes: bytes}
}

func invalid(err error) Request {
	return Request{Kind: KindInvalid, Err: err}
}

func buildHelp(units []string) string {
	example := constants.RequestSeparator
	switch {
	case containsUnit(units, UnitMB):
		example = "4|" + UnitMB
	case len(units) > 0:
		example = "4|" + units[0]
	}
	return fmt.Sprintf("Inform <size>|<unit> - e.g: %s\nUnits available (%s)\n\n", example, strings.Join(units, ", "))
}

func containsUnit(units []string, u string) bool {
	for _, v := range units {
		if v == u {
			return true
		}
	}
	return false
}
