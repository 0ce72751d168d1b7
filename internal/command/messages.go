package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	. "bourse/internal/common"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMalformedCommand = errors.New("malformed command")
)

type CommandType int

const (
	Deposit CommandType = iota
	Withdraw
	NewOrder
	PrintPortfolios
	PrintTrades
	PrintSpread
	PrintOrders
)

type Command interface {
	GetType() CommandType
}

// Generic command type, also used as-is by the print commands.
type BaseCommand struct {
	TypeOf CommandType
}

func (c BaseCommand) GetType() CommandType {
	return c.TypeOf
}

// TransferCommand moves a balance in (deposit) or out (withdraw).
type TransferCommand struct {
	BaseCommand
	User   string
	Asset  Asset
	Amount int64
}

type NewOrderCommand struct {
	BaseCommand
	User     string
	Side     Side
	Asset    Asset
	Quantity int64
	Price    int64
}

// ParseCommand parses one line of the form
//
//	deposit <user> <asset> <amount>
//	withdraw <user> <asset> <amount>
//	buy|sell <user> <asset> <quantity> <price>
//	portfolios | trades | spread | orders
//
// Numbers are checked for syntax only; the engine enforces their range.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrMalformedCommand
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]
	switch verb {
	case "deposit":
		return parseTransfer(Deposit, args)
	case "withdraw":
		return parseTransfer(Withdraw, args)
	case "buy", "sell":
		return parseNewOrder(verb, args)
	case "portfolios":
		return parsePrint(PrintPortfolios, args)
	case "trades":
		return parsePrint(PrintTrades, args)
	case "spread":
		return parsePrint(PrintSpread, args)
	case "orders":
		return parsePrint(PrintOrders, args)
	default:
		return nil, fmt.Errorf("%q: %w", fields[0], ErrUnknownCommand)
	}
}

func parseTransfer(typeOf CommandType, args []string) (TransferCommand, error) {
	if len(args) != 3 {
		return TransferCommand{}, fmt.Errorf("want <user> <asset> <amount>: %w", ErrMalformedCommand)
	}
	asset, err := ParseAsset(args[1])
	if err != nil {
		return TransferCommand{}, err
	}
	amount, err := parseInt("amount", args[2])
	if err != nil {
		return TransferCommand{}, err
	}

	return TransferCommand{
		BaseCommand: BaseCommand{TypeOf: typeOf},
		User:        args[0],
		Asset:       asset,
		Amount:      amount,
	}, nil
}

func parseNewOrder(verb string, args []string) (NewOrderCommand, error) {
	if len(args) != 4 {
		return NewOrderCommand{}, fmt.Errorf("want <user> <asset> <quantity> <price>: %w", ErrMalformedCommand)
	}
	side, err := ParseSide(verb)
	if err != nil {
		return NewOrderCommand{}, err
	}
	asset, err := ParseAsset(args[1])
	if err != nil {
		return NewOrderCommand{}, err
	}
	quantity, err := parseInt("quantity", args[2])
	if err != nil {
		return NewOrderCommand{}, err
	}
	price, err := parseInt("price", args[3])
	if err != nil {
		return NewOrderCommand{}, err
	}

	return NewOrderCommand{
		BaseCommand: BaseCommand{TypeOf: NewOrder},
		User:        args[0],
		Side:        side,
		Asset:       asset,
		Quantity:    quantity,
		Price:       price,
	}, nil
}

func parsePrint(typeOf CommandType, args []string) (BaseCommand, error) {
	if len(args) != 0 {
		return BaseCommand{}, fmt.Errorf("takes no arguments: %w", ErrMalformedCommand)
	}
	return BaseCommand{TypeOf: typeOf}, nil
}

func parseInt(name, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, ErrMalformedCommand)
	}
	return n, nil
}
