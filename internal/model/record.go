package model

// SkipReason 指令未能执行的结构化原因。全部为非致命结果，
// 记录后继续处理后续消息。
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipParseFailure      SkipReason = "parse_failure"       // 无法识别指令类型
	SkipResolutionFailure SkipReason = "resolution_failure"  // 补全后仍缺关键字段
	SkipMarketData        SkipReason = "market_unavailable"  // 无行情/无持仓
	SkipRiskRejection     SkipReason = "risk_rejection"      // 数量为 0 或风控拒绝
)

// Record 单条消息的完整处理记录：原始消息 + 解析指令 + 执行结果。
type Record struct {
	Index       int
	Message     *RawMessage
	Instruction *Instruction
	Skip        SkipReason
	SkipNote    string
	OrderID     string
}

// Executed 是否已实际提交订单。
func (r *Record) Executed() bool {
	return r.OrderID != ""
}

// Discarded 是否被归入失败清单。
func (r *Record) Discarded() bool {
	return r.Skip != SkipNone
}
