package broker

import (
	"context"
	"strings"
	"time"
)

// 中文说明：
// 券商抽象。交易引擎只依赖该接口，真实通道与模拟通道可互换。
// 所有方法带 ctx，调用方控制超时。

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 订单类型。
type OrderType string

const (
	OrderTypeLimit  OrderType = "LO" // 限价
	OrderTypeMarket OrderType = "MO" // 市价
)

// OrderStatus 订单状态。
type OrderStatus string

const (
	StatusNew       OrderStatus = "New"
	StatusFilled    OrderStatus = "Filled"
	StatusCancelled OrderStatus = "Cancelled"
)

// Balance 账户资金。
type Balance struct {
	TotalCash     float64
	AvailableCash float64
	Currency      string
}

// Position 持仓。Quantity 含冻结部分，可卖数量看 Available。
type Position struct {
	Symbol    string
	Quantity  int
	Available int
	CostPrice float64
}

// Quote 行情快照。
type Quote struct {
	Symbol    string
	Last      float64
	Timestamp time.Time
}

// OrderRequest 下单请求。期权按每张 100 股计算金额。
type OrderRequest struct {
	Symbol       string
	Side         Side
	Type         OrderType
	Quantity     int
	Price        float64
	TriggerPrice float64
	Remark       string
}

// Order 订单回报。
type Order struct {
	OrderID      string
	Symbol       string
	Side         Side
	Type         OrderType
	Quantity     int
	Executed     int
	Price        float64
	TriggerPrice float64
	Status       OrderStatus
	SubmittedAt  time.Time
	Remark       string
}

// ContractMultiplier 每单位报价对应的股数：期权代码按每张 100 股，
// 普通股票按 1。期权代码去掉 .US 后缀后超过 8 个字符。
func ContractMultiplier(symbol string) float64 {
	base := strings.TrimSuffix(symbol, ".US")
	if len(base) > 8 {
		return 100
	}
	return 1
}

// Broker 券商通道。
type Broker interface {
	AccountBalance(ctx context.Context) (*Balance, error)
	Positions(ctx context.Context) ([]*Position, error)
	Quote(ctx context.Context, symbol string) (*Quote, error)
	SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	TodayOrders(ctx context.Context, symbol string) ([]*Order, error)
	ReplaceOrder(ctx context.Context, orderID string, price, triggerPrice float64) error
	CancelOrder(ctx context.Context, orderID string) error
}
