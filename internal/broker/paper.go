package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sigtrader/internal/logger"
)

// 中文说明：
// 纸面券商：内存撮合的模拟通道，下单即按委托价成交。
// 三道风控与真实通道一致：最小订单金额、单笔仓位占比、当日最大亏损。

// PaperConfig 模拟通道参数。
type PaperConfig struct {
	InitialCash      float64
	MinOrderAmount   float64
	MaxPositionRatio float64
	MaxDailyLoss     float64
}

// PaperBroker 内存模拟券商。并发安全。
type PaperBroker struct {
	cfg PaperConfig

	mu        sync.RWMutex
	cash      float64
	dailyPnL  float64
	positions map[string]*Position
	orders    []*Order
	quotes    map[string]float64
	now       func() time.Time
}

// NewPaper 创建模拟券商。
func NewPaper(cfg PaperConfig) *PaperBroker {
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = 100000
	}
	return &PaperBroker{
		cfg:       cfg,
		cash:      cfg.InitialCash,
		positions: make(map[string]*Position),
		quotes:    make(map[string]float64),
		now:       time.Now,
	}
}

// SetQuote 写入模拟行情。
func (b *PaperBroker) SetQuote(symbol string, last float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = last
}

// AccountBalance 返回账户资金快照。
func (b *PaperBroker) AccountBalance(ctx context.Context) (*Balance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Balance{TotalCash: b.cash, AvailableCash: b.cash, Currency: "USD"}, nil
}

// Positions 返回全部持仓的副本。
func (b *PaperBroker) Positions(ctx context.Context) ([]*Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Position, 0, len(b.positions))
	for _, p := range b.positions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// Quote 返回模拟行情，未设置时报错。
func (b *PaperBroker) Quote(ctx context.Context, symbol string) (*Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	last, ok := b.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("无 %s 的行情", symbol)
	}
	return &Quote{Symbol: symbol, Last: last, Timestamp: b.now()}, nil
}

// SubmitOrder 风控校验后立即按委托价成交，市价单取最新行情。
func (b *PaperBroker) SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("订单数量必须为正: %d", req.Quantity)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	price := req.Price
	if req.Type == OrderTypeMarket || price <= 0 {
		last, ok := b.quotes[req.Symbol]
		if !ok {
			return nil, fmt.Errorf("市价单缺少 %s 的行情", req.Symbol)
		}
		price = last
	}
	amount := price * float64(req.Quantity) * ContractMultiplier(req.Symbol)

	if err := b.checkRisk(req.Side, amount); err != nil {
		return nil, err
	}

	order := &Order{
		OrderID:      uuid.NewString(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Type:         req.Type,
		Quantity:     req.Quantity,
		Price:        price,
		TriggerPrice: req.TriggerPrice,
		Status:       StatusNew,
		SubmittedAt:  b.now(),
		Remark:       req.Remark,
	}

	if err := b.fill(order, amount); err != nil {
		return nil, err
	}
	b.orders = append(b.orders, order)
	logger.Infof("模拟成交: %s %s x%d @ $%.2f (订单 %s)",
		order.Side, order.Symbol, order.Quantity, order.Price, order.OrderID)
	cp := *order
	return &cp, nil
}

// checkRisk 三道风控，任一不过即拒单。
func (b *PaperBroker) checkRisk(side Side, amount float64) error {
	if side != SideBuy {
		return nil
	}
	if b.cfg.MinOrderAmount > 0 && amount < b.cfg.MinOrderAmount {
		return fmt.Errorf("订单金额 $%.2f 低于最小限额 $%.2f", amount, b.cfg.MinOrderAmount)
	}
	if b.cfg.MaxPositionRatio > 0 && amount > b.cash*b.cfg.MaxPositionRatio {
		return fmt.Errorf("订单金额 $%.2f 超过仓位上限 %.0f%%", amount, b.cfg.MaxPositionRatio*100)
	}
	if b.cfg.MaxDailyLoss > 0 && b.dailyPnL < -b.cash*b.cfg.MaxDailyLoss {
		return fmt.Errorf("当日亏损 $%.2f 已触及风控线", -b.dailyPnL)
	}
	if amount > b.cash {
		return fmt.Errorf("可用资金不足: 需要 $%.2f, 仅有 $%.2f", amount, b.cash)
	}
	return nil
}

func (b *PaperBroker) fill(order *Order, amount float64) error {
	switch order.Side {
	case SideBuy:
		b.cash -= amount
		pos, ok := b.positions[order.Symbol]
		if !ok {
			pos = &Position{Symbol: order.Symbol}
			b.positions[order.Symbol] = pos
		}
		total := float64(pos.Quantity) + float64(order.Quantity)
		pos.CostPrice = (pos.CostPrice*float64(pos.Quantity) + order.Price*float64(order.Quantity)) / total
		pos.Quantity += order.Quantity
		pos.Available += order.Quantity
	case SideSell:
		pos, ok := b.positions[order.Symbol]
		if !ok || pos.Available < order.Quantity {
			return fmt.Errorf("可卖数量不足: %s", order.Symbol)
		}
		b.cash += amount
		pnl := (order.Price - pos.CostPrice) * float64(order.Quantity) * ContractMultiplier(order.Symbol)
		b.dailyPnL += pnl
		pos.Quantity -= order.Quantity
		pos.Available -= order.Quantity
		if pos.Quantity == 0 {
			delete(b.positions, order.Symbol)
		}
	}
	order.Executed = order.Quantity
	order.Status = StatusFilled
	return nil
}

// TodayOrders 返回当日该代码的订单副本，symbol 为空时返回全部。
func (b *PaperBroker) TodayOrders(ctx context.Context, symbol string) ([]*Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	today := b.now().Format("2006-01-02")
	var out []*Order
	for _, o := range b.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if o.SubmittedAt.Format("2006-01-02") != today {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

// ReplaceOrder 修改未成交订单的价格与触发价。
func (b *PaperBroker) ReplaceOrder(ctx context.Context, orderID string, price, triggerPrice float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.OrderID != orderID {
			continue
		}
		if o.Status != StatusNew {
			return fmt.Errorf("订单 %s 状态为 %s, 不可修改", orderID, o.Status)
		}
		if price > 0 {
			o.Price = price
		}
		o.TriggerPrice = triggerPrice
		return nil
	}
	return fmt.Errorf("订单不存在: %s", orderID)
}

// CancelOrder 撤销未成交订单。
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.OrderID != orderID {
			continue
		}
		if o.Status != StatusNew {
			return fmt.Errorf("订单 %s 状态为 %s, 不可撤销", orderID, o.Status)
		}
		o.Status = StatusCancelled
		return nil
	}
	return fmt.Errorf("订单不存在: %s", orderID)
}

// DailyPnL 当日已实现盈亏。
func (b *PaperBroker) DailyPnL() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dailyPnL
}

var _ Broker = (*PaperBroker)(nil)
