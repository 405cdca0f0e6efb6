package trade

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sigtrader/internal/broker"
	"sigtrader/internal/logger"
	"sigtrader/internal/model"
)

// 中文说明：
// 交易决策引擎。把补全后的指令换算成订单：买入按资金上限定量，
// 卖出按比例换算数量，清仓全抛，改单先查价再决定平仓或改触发价。
// 所有不可执行的情形都落成结构化跳过原因，只记录不中断。

// Config 引擎参数。
type Config struct {
	MaxSingleTrade float64 // 单笔资金上限
	MaxQuantity    int     // 单笔最大张数
	PriceTolerance float64 // 行情偏离容忍度，百分比
	SizeRatios     map[string]float64
}

// defaultSizeRatios 仓位词对应的资金占比。
var defaultSizeRatios = map[string]float64{
	"小仓位": 0.05, "轻仓": 0.05,
	"中仓位": 0.10, "半仓": 0.10,
	"大仓位": 0.15, "重仓": 0.15, "满仓": 0.15,
}

func (c *Config) applyDefaults() {
	if c.MaxSingleTrade <= 0 {
		c.MaxSingleTrade = 10000
	}
	if c.MaxQuantity <= 0 {
		c.MaxQuantity = 10
	}
	if c.PriceTolerance <= 0 {
		c.PriceTolerance = 5
	}
	if c.SizeRatios == nil {
		c.SizeRatios = defaultSizeRatios
	}
}

// Outcome 单条指令的执行结果。Skip 非空表示未下单及原因。
type Outcome struct {
	OrderID string
	Skip    model.SkipReason
	Note    string
}

func skip(reason model.SkipReason, format string, args ...any) *Outcome {
	return &Outcome{Skip: reason, Note: fmt.Sprintf(format, args...)}
}

// Engine 交易决策引擎。
type Engine struct {
	broker broker.Broker
	cfg    Config
}

// New 创建引擎。
func New(b broker.Broker, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{broker: b, cfg: cfg}
}

// Execute 执行一条指令。跳过不算错误，error 仅用于通道级故障。
func (e *Engine) Execute(ctx context.Context, in *model.Instruction) (*Outcome, error) {
	switch in.Type {
	case model.Buy:
		return e.executeBuy(ctx, in)
	case model.Sell:
		return e.executeSell(ctx, in)
	case model.Close:
		return e.executeClose(ctx, in)
	case model.Modify:
		return e.executeModify(ctx, in)
	}
	return skip(model.SkipParseFailure, "未识别的指令类型: %s", in.Type), nil
}

func (e *Engine) executeBuy(ctx context.Context, in *model.Instruction) (*Outcome, error) {
	if in.Symbol == "" {
		return skip(model.SkipResolutionFailure, "买入缺少期权代码"), nil
	}
	price := in.EffectivePrice()
	if price <= 0 {
		return skip(model.SkipParseFailure, "买入缺少价格"), nil
	}

	q, err := e.broker.Quote(ctx, in.Symbol)
	if err != nil {
		return skip(model.SkipMarketData, "无法获取 %s 行情: %v", in.Symbol, err), nil
	}
	deviation := math.Abs(q.Last-price) / price * 100
	if deviation > e.cfg.PriceTolerance {
		return skip(model.SkipRiskRejection,
			"行情 $%.2f 偏离指令价 $%.2f 达 %.1f%%", q.Last, price, deviation), nil
	}
	// 行情更便宜时按行情买
	execPrice := price
	if q.Last < execPrice {
		execPrice = q.Last
	}

	bal, err := e.broker.AccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询资金失败: %w", err)
	}
	qty := e.buyQuantity(in.Symbol, execPrice, bal.AvailableCash, in.PosSize)
	if qty <= 0 {
		return skip(model.SkipRiskRejection, "资金不足以买入一张"), nil
	}

	req := &broker.OrderRequest{
		Symbol:   in.Symbol,
		Side:     broker.SideBuy,
		Type:     broker.OrderTypeLimit,
		Quantity: qty,
		Price:    execPrice,
		Remark:   in.MessageID,
	}
	if sl := in.EffectiveStopLoss(); sl > 0 {
		req.TriggerPrice = sl
	}
	order, err := e.broker.SubmitOrder(ctx, req)
	if err != nil {
		return skip(model.SkipRiskRejection, "下单被拒: %v", err), nil
	}
	logger.Infof("买入 %s x%d @ $%.2f", in.Symbol, qty, execPrice)
	return &Outcome{OrderID: order.OrderID}, nil
}

// buyQuantity 由资金上限推数量：上限内至少一张，再按张数与仓位词封顶。
// 每张成本按代码折算合约乘数，股票按 1 股、期权按 100 股。
func (e *Engine) buyQuantity(symbol string, price, cash float64, posSize string) int {
	maxTotal := math.Min(e.cfg.MaxSingleTrade, cash)
	if ratio, ok := e.cfg.SizeRatios[posSize]; ok {
		maxTotal = math.Min(maxTotal, cash*ratio)
	}
	perContract := price * broker.ContractMultiplier(symbol)
	if perContract > cash {
		return 0
	}
	qty := int(math.Floor(maxTotal / perContract))
	if qty < 1 {
		qty = 1
	}
	if qty > e.cfg.MaxQuantity {
		qty = e.cfg.MaxQuantity
	}
	return qty
}

func (e *Engine) executeSell(ctx context.Context, in *model.Instruction) (*Outcome, error) {
	pos, out := e.position(ctx, in.Symbol)
	if out != nil {
		return out, nil
	}

	total := e.todayBuyTotal(ctx, in.Symbol)
	if total <= 0 {
		total = pos.Available
	}
	target := sellQuantity(in.SellQty, total, pos.Available)
	if target <= 0 {
		return skip(model.SkipRiskRejection, "卖出数量为 0 (持仓 %d)", pos.Available), nil
	}

	req := &broker.OrderRequest{
		Symbol:   in.Symbol,
		Side:     broker.SideSell,
		Quantity: target,
		Remark:   in.MessageID,
	}
	if price := in.EffectivePrice(); price > 0 {
		req.Type = broker.OrderTypeLimit
		req.Price = price
	} else {
		req.Type = broker.OrderTypeMarket
	}
	order, err := e.broker.SubmitOrder(ctx, req)
	if err != nil {
		return skip(model.SkipRiskRejection, "卖出被拒: %v", err), nil
	}
	logger.Infof("卖出 %s x%d", in.Symbol, target)
	return &Outcome{OrderID: order.OrderID}, nil
}

func (e *Engine) executeClose(ctx context.Context, in *model.Instruction) (*Outcome, error) {
	pos, out := e.position(ctx, in.Symbol)
	if out != nil {
		return out, nil
	}
	if pos.Available <= 0 {
		return skip(model.SkipRiskRejection, "无可卖数量: %s", in.Symbol), nil
	}

	req := &broker.OrderRequest{
		Symbol:   in.Symbol,
		Side:     broker.SideSell,
		Quantity: pos.Available,
		Remark:   in.MessageID,
	}
	if price := in.EffectivePrice(); price > 0 {
		req.Type = broker.OrderTypeLimit
		req.Price = price
	} else {
		req.Type = broker.OrderTypeMarket
	}
	order, err := e.broker.SubmitOrder(ctx, req)
	if err != nil {
		return skip(model.SkipRiskRejection, "清仓被拒: %v", err), nil
	}
	logger.Infof("清仓 %s x%d", in.Symbol, pos.Available)
	return &Outcome{OrderID: order.OrderID}, nil
}

// executeModify 先对照行情：已触及止损/止盈直接市价平仓，
// 否则把触发价写到未成交的买单上。
func (e *Engine) executeModify(ctx context.Context, in *model.Instruction) (*Outcome, error) {
	pos, out := e.position(ctx, in.Symbol)
	if out != nil {
		return out, nil
	}
	q, err := e.broker.Quote(ctx, in.Symbol)
	if err != nil {
		return skip(model.SkipMarketData, "无法获取 %s 行情: %v", in.Symbol, err), nil
	}

	sl := in.EffectiveStopLoss()
	tp := in.EffectiveTakeProfit()
	if sl > 0 && q.Last <= sl {
		logger.Warnf("%s 现价 $%.2f 已低于止损 $%.2f, 市价平仓", in.Symbol, q.Last, sl)
		return e.marketCloseAll(ctx, in, pos)
	}
	if tp > 0 && q.Last >= tp {
		logger.Infof("%s 现价 $%.2f 已达止盈 $%.2f, 市价平仓", in.Symbol, q.Last, tp)
		return e.marketCloseAll(ctx, in, pos)
	}

	// 止损优先，仅止盈时以止盈价为触发价
	trigger, label := sl, "止损"
	if trigger <= 0 {
		trigger, label = tp, "止盈"
	}
	if trigger <= 0 {
		return skip(model.SkipParseFailure, "改单缺少止损/止盈价"), nil
	}

	orders, err := e.broker.TodayOrders(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	for _, o := range orders {
		if o.Side != broker.SideBuy || o.Status == broker.StatusFilled || o.Status == broker.StatusCancelled {
			continue
		}
		if err := e.broker.ReplaceOrder(ctx, o.OrderID, 0, trigger); err != nil {
			return skip(model.SkipRiskRejection, "改单失败: %v", err), nil
		}
		logger.Infof("更新 %s %s触发价至 $%.2f (订单 %s)", in.Symbol, label, trigger, o.OrderID)
		return &Outcome{OrderID: o.OrderID, Note: "触发价已更新"}, nil
	}
	// 没有可改的挂单时只记录目标价，等待行情触发
	return &Outcome{Note: fmt.Sprintf("%s $%.2f 已记录, 无待改订单", label, trigger)}, nil
}

func (e *Engine) marketCloseAll(ctx context.Context, in *model.Instruction, pos *broker.Position) (*Outcome, error) {
	order, err := e.broker.SubmitOrder(ctx, &broker.OrderRequest{
		Symbol:   in.Symbol,
		Side:     broker.SideSell,
		Type:     broker.OrderTypeMarket,
		Quantity: pos.Available,
		Remark:   in.MessageID,
	})
	if err != nil {
		return skip(model.SkipRiskRejection, "平仓被拒: %v", err), nil
	}
	return &Outcome{OrderID: order.OrderID, Note: "触发平仓"}, nil
}

// position 查找持仓，不存在时给出跳过结果。
func (e *Engine) position(ctx context.Context, symbol string) (*broker.Position, *Outcome) {
	if symbol == "" {
		return nil, skip(model.SkipResolutionFailure, "指令缺少期权代码")
	}
	positions, err := e.broker.Positions(ctx)
	if err != nil {
		return nil, skip(model.SkipMarketData, "查询持仓失败: %v", err)
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return nil, skip(model.SkipMarketData, "无 %s 持仓", symbol)
}

// todayBuyTotal 当日已成交买单的总张数，作为按比例卖出的基数。
func (e *Engine) todayBuyTotal(ctx context.Context, symbol string) int {
	orders, err := e.broker.TodayOrders(ctx, symbol)
	if err != nil {
		return 0
	}
	total := 0
	for _, o := range orders {
		if o.Side == broker.SideBuy && o.Status == broker.StatusFilled {
			total += o.Executed
		}
	}
	return total
}

// sellQuantity 把份额表达换算成张数并按可卖数量封顶。
// 支持 "1/3"、"50%"、绝对数量，空串表示全部可卖。
func sellQuantity(expr string, total, available int) int {
	target := available
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
	case strings.Contains(expr, "/"):
		parts := strings.SplitN(expr, "/", 2)
		n, err1 := strconv.Atoi(parts[0])
		d, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && d > 0 {
			target = total * n / d
		}
	case strings.HasSuffix(expr, "%"):
		if pct, err := strconv.Atoi(strings.TrimSuffix(expr, "%")); err == nil {
			target = total * pct / 100
		}
	default:
		if abs, err := strconv.Atoi(expr); err == nil {
			target = abs
		}
	}
	if target > available {
		target = available
	}
	return target
}
