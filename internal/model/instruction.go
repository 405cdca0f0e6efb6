package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// 中文说明：
// Instruction 是解析/补全后的交易指令。由解析器从单条消息创建，
// 仅上下文解析器可回填缺失字段，之后只读。

// InstructionType 指令类型。
type InstructionType string

const (
	Buy     InstructionType = "BUY"    // 买入开仓
	Sell    InstructionType = "SELL"   // 部分卖出
	Close   InstructionType = "CLOSE"  // 清仓
	Modify  InstructionType = "MODIFY" // 调整止损/止盈
	Unknown InstructionType = "UNKNOWN"
)

// OptionType 期权方向。
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ContextSource 记录缺失字段由哪一层回填。
type ContextSource string

const (
	SourceNone         ContextSource = "none"
	SourceGroupHistory ContextSource = "group_history"
	SourceQuoted       ContextSource = "quoted"
	SourceLookback     ContextSource = "lookback_window"
)

// Range 价格区间，单价取中间值。
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Mid 返回区间中点。
func (r *Range) Mid() float64 {
	if r == nil {
		return 0
	}
	return (r.Low + r.High) / 2
}

// Instruction 单条交易指令。
type Instruction struct {
	Type      InstructionType `json:"instruction_type"`
	Ticker    string          `json:"ticker,omitempty"`
	Option    OptionType      `json:"option_type,omitempty"`
	Strike    float64         `json:"strike,omitempty"`
	Expiry    string          `json:"expiry,omitempty"` // "2/9"、"本周" 或归一化后的 YYMMDD
	Symbol    string          `json:"symbol,omitempty"` // 如 TSLA260209C440000.US
	Price     float64         `json:"price,omitempty"`
	PriceRng  *Range          `json:"price_range,omitempty"`
	SellQty   string          `json:"sell_quantity,omitempty"` // "1/3"、"50%" 或绝对数量
	PosSize   string          `json:"position_size,omitempty"` // 小仓位/中仓位/大仓位等
	StopLoss  float64         `json:"stop_loss_price,omitempty"`
	StopRng   *Range          `json:"stop_loss_range,omitempty"`
	TakeProf  float64         `json:"take_profit_price,omitempty"`
	TakeRng   *Range          `json:"take_profit_range,omitempty"`
	Source    ContextSource   `json:"context_source"`
	DependMsg string          `json:"depend_message,omitempty"` // 提供上下文的消息原文
	RawText   string          `json:"raw_message"`
	MessageID string          `json:"message_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// EffectivePrice 单价：区间取中点，否则取 Price。
func (in *Instruction) EffectivePrice() float64 {
	if in.Price > 0 {
		return in.Price
	}
	return in.PriceRng.Mid()
}

// EffectiveStopLoss 止损价：区间取中点。
func (in *Instruction) EffectiveStopLoss() float64 {
	if in.StopLoss > 0 {
		return in.StopLoss
	}
	return in.StopRng.Mid()
}

// EffectiveTakeProfit 止盈价：区间取中点。
func (in *Instruction) EffectiveTakeProfit() float64 {
	if in.TakeProf > 0 {
		return in.TakeProf
	}
	return in.TakeRng.Mid()
}

// NeedsCompletion 非 BUY 指令缺 ticker/strike/expiry 任一项时需要补全。
// 已带完整代码的指令（股票类直接给 TICKER.US）无需补全。
func (in *Instruction) NeedsCompletion() bool {
	if in.Type == Buy || in.Symbol != "" {
		return false
	}
	switch in.Type {
	case Sell, Close, Modify:
		return in.Ticker == "" || in.Strike == 0 || in.Expiry == ""
	}
	return false
}

// HasIdentity 是否具备生成期权代码所需的全部字段。
func (in *Instruction) HasIdentity() bool {
	return in.Symbol != "" ||
		(in.Ticker != "" && in.Option != "" && in.Strike > 0 && in.Expiry != "")
}

// String 供日志展示。
func (in *Instruction) String() string {
	price := "市价"
	if in.PriceRng != nil {
		price = fmt.Sprintf("$%g-$%g", in.PriceRng.Low, in.PriceRng.High)
	} else if in.Price > 0 {
		price = fmt.Sprintf("$%g", in.Price)
	}
	switch in.Type {
	case Buy:
		return strings.TrimSpace(fmt.Sprintf("[买入] %s $%g %s @ %s (%s) %s",
			in.Ticker, in.Strike, in.Option, price, in.Expiry, in.PosSize))
	case Sell:
		return strings.TrimSpace(fmt.Sprintf("[卖出] %s @ %s 数量: %s", orUnknown(in.Ticker), price, in.SellQty))
	case Close:
		return fmt.Sprintf("[清仓] %s @ %s", orUnknown(in.Ticker), price)
	case Modify:
		parts := []string{fmt.Sprintf("[修改] %s", orUnknown(in.Ticker))}
		if sl := in.EffectiveStopLoss(); sl > 0 {
			parts = append(parts, fmt.Sprintf("止损: $%g", sl))
		}
		if tp := in.EffectiveTakeProfit(); tp > 0 {
			parts = append(parts, fmt.Sprintf("止盈: $%g", tp))
		}
		return strings.Join(parts, " ")
	}
	return "[未识别] " + truncateRunes(in.RawText, 50)
}

func orUnknown(s string) string {
	if s == "" {
		return "未识别"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var (
	reYYMMDD   = regexp.MustCompile(`^\d{6}$`)
	reMonthDay = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})`)
	reCNExpiry = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日?`)
)

// NormalizeExpiry 将到期日统一转为 YYMMDD。
// 相对表达（本周/下周/今天）以消息时间为基准折算，绝不使用挂钟时间。
func NormalizeExpiry(expiry, timestamp string) (string, error) {
	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		return "", fmt.Errorf("到期日为空")
	}
	if reYYMMDD.MatchString(expiry) {
		return expiry, nil
	}

	msgTime, terr := ParseTimestamp(timestamp, time.Now())

	lower := strings.ToLower(expiry)
	switch lower {
	case "今天", "today":
		if terr != nil {
			return "", fmt.Errorf("相对到期日 %q 需要消息时间: %w", expiry, terr)
		}
		return fmt.Sprintf("%02d%02d%02d", msgTime.Year()%100, int(msgTime.Month()), msgTime.Day()), nil
	case "本周", "这周", "当周", "this week":
		if terr != nil {
			return "", fmt.Errorf("相对到期日 %q 需要消息时间: %w", expiry, terr)
		}
		target := nextFriday(msgTime, false)
		return fmt.Sprintf("%02d%02d%02d", target.Year()%100, int(target.Month()), target.Day()), nil
	case "下周", "next week":
		if terr != nil {
			return "", fmt.Errorf("相对到期日 %q 需要消息时间: %w", expiry, terr)
		}
		target := nextFriday(msgTime, true)
		return fmt.Sprintf("%02d%02d%02d", target.Year()%100, int(target.Month()), target.Day()), nil
	}

	var month, day int
	if m := reMonthDay.FindStringSubmatch(expiry); m != nil {
		fmt.Sscanf(m[1], "%d", &month)
		fmt.Sscanf(m[2], "%d", &day)
	} else if m := reCNExpiry.FindStringSubmatch(expiry); m != nil {
		fmt.Sscanf(m[1], "%d", &month)
		fmt.Sscanf(m[2], "%d", &day)
	}
	if month == 0 || day == 0 {
		return "", fmt.Errorf("无法识别的到期日: %q", expiry)
	}
	// 年份同样取自消息时间，不落回挂钟时间
	if terr != nil {
		return "", fmt.Errorf("到期日 %q 需要消息时间定位年份: %w", expiry, terr)
	}
	return fmt.Sprintf("%02d%02d%02d", msgTime.Year()%100, month, day), nil
}

// nextFriday 计算基准日所在周（或下一周）的周五。
// 基准日恰为周五时归入下一周，与信号频道的惯例一致。
func nextFriday(base time.Time, nextWeek bool) time.Time {
	days := (int(time.Friday) - int(base.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	if nextWeek {
		days += 7
	}
	return base.AddDate(0, 0, days)
}

// OptionSymbol 生成期权代码：TICKER + YYMMDD + C/P + 行权价*1000 + ".US"。
func OptionSymbol(ticker string, opt OptionType, strike float64, yymmdd string) string {
	code := "P"
	if opt == Call {
		code = "C"
	}
	return fmt.Sprintf("%s%s%s%d.US", ticker, yymmdd, code, int(strike*1000))
}
