// Package wire 定義帳本 gRPC 服務的訊息格式與方法名稱，由 server 與 client 共用。
//
// 訊息描述在 descriptor.go，傳輸時轉成 dynamicpb 訊息以 protobuf 編碼。
package wire

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/domain"
)

// ServiceName gRPC 服務全名
const ServiceName = "treasury.v1.Ledger"

const (
	MethodGetBalance              = "GetBalance"
	MethodHasFunds                = "HasFunds"
	MethodHasAccount              = "HasAccount"
	MethodHasAccountByID          = "HasAccountByID"
	MethodGetAccountByOwner       = "GetAccountByOwner"
	MethodResolveOrCreatePersonal = "ResolveOrCreatePersonal"
	MethodGetAccountByID          = "GetAccountByID"
	MethodGetApprovers            = "GetApprovers"
	MethodCanAccess               = "CanAccess"
	MethodTransfer                = "Transfer"
	MethodFormatAmount            = "FormatAmount"
)

// ErrMalformed 收到的 protobuf 訊息內容無法轉回領域型別
var ErrMalformed = errors.New("malformed ledger message")

// FullMethod 回傳 "/treasury.v1.Ledger/<method>"
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Message 可以與 treasury.v1 protobuf 訊息互轉的型別
type Message interface {
	protoName() protoreflect.Name
	encode(m protoreflect.Message)
	decode(m protoreflect.Message) error
}

// Descriptor 回傳 msg 對應的 protobuf 訊息描述
func Descriptor(msg Message) protoreflect.MessageDescriptor {
	return File.Messages().ByName(msg.protoName())
}

// Empty 建立 msg 對應的空 protobuf 訊息，供 codec 解碼
func Empty(msg Message) proto.Message {
	return dynamicpb.NewMessage(Descriptor(msg))
}

// Encode 把 msg 轉成 protobuf 訊息
func Encode(msg Message) proto.Message {
	m := dynamicpb.NewMessage(Descriptor(msg))
	msg.encode(m)
	return m
}

// Decode 把 protobuf 訊息寫回 msg
//
// 參數:
//
//	pm: proto.Message - 由 Empty 建立並解碼完成的訊息
//	msg: Message - 目標 (指標)
//
// 回傳值:
//
//	error: 訊息型別不符或內容格式錯誤時回傳 (包裝 ErrMalformed 或 domain 錯誤)
func Decode(pm proto.Message, msg Message) error {
	m := pm.ProtoReflect()
	want := Descriptor(msg).FullName()
	if got := m.Descriptor().FullName(); got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrMalformed, got, want)
	}
	return msg.decode(m)
}

type OwnerRequest struct {
	Owner uuid.UUID
}

func (*OwnerRequest) protoName() protoreflect.Name { return "OwnerRequest" }

func (r *OwnerRequest) encode(m protoreflect.Message) {
	setString(m, "owner", r.Owner.String())
}

func (r *OwnerRequest) decode(m protoreflect.Message) (err error) {
	r.Owner, err = parseUUID("owner", getString(m, "owner"))
	return err
}

type AccountRequest struct {
	Ref domain.AccountRef
}

func (*AccountRequest) protoName() protoreflect.Name { return "AccountRequest" }

func (r *AccountRequest) encode(m protoreflect.Message) {
	setInt64(m, "ref", int64(r.Ref))
}

func (r *AccountRequest) decode(m protoreflect.Message) error {
	r.Ref = domain.AccountRef(getInt64(m, "ref"))
	return nil
}

type FundsRequest struct {
	Ref    domain.AccountRef
	Amount decimal.Decimal
}

func (*FundsRequest) protoName() protoreflect.Name { return "FundsRequest" }

func (r *FundsRequest) encode(m protoreflect.Message) {
	setInt64(m, "ref", int64(r.Ref))
	setString(m, "amount", r.Amount.String())
}

func (r *FundsRequest) decode(m protoreflect.Message) (err error) {
	r.Ref = domain.AccountRef(getInt64(m, "ref"))
	r.Amount, err = parseDecimal(getString(m, "amount"))
	return err
}

type AccessRequest struct {
	Who uuid.UUID
	Ref domain.AccountRef
}

func (*AccessRequest) protoName() protoreflect.Name { return "AccessRequest" }

func (r *AccessRequest) encode(m protoreflect.Message) {
	setString(m, "who", r.Who.String())
	setInt64(m, "ref", int64(r.Ref))
}

func (r *AccessRequest) decode(m protoreflect.Message) (err error) {
	r.Ref = domain.AccountRef(getInt64(m, "ref"))
	r.Who, err = parseUUID("who", getString(m, "who"))
	return err
}

type AmountRequest struct {
	Amount decimal.Decimal
}

func (*AmountRequest) protoName() protoreflect.Name { return "AmountRequest" }

func (r *AmountRequest) encode(m protoreflect.Message) {
	setString(m, "amount", r.Amount.String())
}

func (r *AmountRequest) decode(m protoreflect.Message) (err error) {
	r.Amount, err = parseDecimal(getString(m, "amount"))
	return err
}

type TransferRequest struct {
	Instruction domain.TransferInstruction
}

func (*TransferRequest) protoName() protoreflect.Name { return "TransferRequest" }

func (r *TransferRequest) encode(m protoreflect.Message) {
	in := &r.Instruction
	setInt64(m, "source", int64(in.Source))
	setInt64(m, "destination", int64(in.Destination))
	setString(m, "amount", in.Amount.String())
	setString(m, "memo", in.Memo)
	setString(m, "initiator", in.Initiator.String())
	if in.Approver.Valid {
		setString(m, "approver", in.Approver.UUID.String())
	}
	setString(m, "origin", in.Origin)
	if !in.Token.IsZero() {
		m.Set(field(m, "token"), protoreflect.ValueOfBytes(in.Token[:]))
	}
}

func (r *TransferRequest) decode(m protoreflect.Message) error {
	in := domain.TransferInstruction{
		Source:      domain.AccountRef(getInt64(m, "source")),
		Destination: domain.AccountRef(getInt64(m, "destination")),
		Memo:        getString(m, "memo"),
		Origin:      getString(m, "origin"),
	}
	var err error
	if in.Amount, err = parseDecimal(getString(m, "amount")); err != nil {
		return err
	}
	if in.Initiator, err = parseUUID("initiator", getString(m, "initiator")); err != nil {
		return err
	}
	if s := getString(m, "approver"); s != "" {
		approver, err := parseUUID("approver", s)
		if err != nil {
			return err
		}
		in.Approver = uuid.NullUUID{UUID: approver, Valid: true}
	}
	// 空 token 保留零值，交給 Validate 回報
	if token := m.Get(field(m, "token")).Bytes(); len(token) > 0 {
		if len(token) != domain.IdempotencyTokenSize {
			return fmt.Errorf("%w: token has %d bytes", domain.ErrInvalidToken, len(token))
		}
		copy(in.Token[:], token)
	}
	r.Instruction = in
	return nil
}

type BalanceReply struct {
	Balance decimal.Decimal
}

func (*BalanceReply) protoName() protoreflect.Name { return "BalanceReply" }

func (r *BalanceReply) encode(m protoreflect.Message) {
	setString(m, "balance", r.Balance.String())
}

func (r *BalanceReply) decode(m protoreflect.Message) (err error) {
	r.Balance, err = parseDecimal(getString(m, "balance"))
	return err
}

type BoolReply struct {
	Value bool
}

func (*BoolReply) protoName() protoreflect.Name { return "BoolReply" }

func (r *BoolReply) encode(m protoreflect.Message) {
	m.Set(field(m, "value"), protoreflect.ValueOfBool(r.Value))
}

func (r *BoolReply) decode(m protoreflect.Message) error {
	r.Value = m.Get(field(m, "value")).Bool()
	return nil
}

// AccountReply Account 為 nil 代表帳戶不存在 (protobuf 欄位未設定)
type AccountReply struct {
	Account *domain.AccountMetadata
}

func (*AccountReply) protoName() protoreflect.Name { return "AccountReply" }

func (r *AccountReply) encode(m protoreflect.Message) {
	if r.Account == nil {
		return
	}
	fd := field(m, "account")
	a := m.NewField(fd).Message()
	setInt64(a, "id", int64(r.Account.ID))
	a.Set(field(a, "kind"), protoreflect.ValueOfInt32(int32(r.Account.Kind)))
	if r.Account.Owner.Valid {
		setString(a, "owner", r.Account.Owner.UUID.String())
	}
	setString(a, "name", r.Account.Name)
	a.Set(field(a, "requires_authorization"), protoreflect.ValueOfBool(r.Account.RequiresAuthorization))
	m.Set(fd, protoreflect.ValueOfMessage(a))
}

func (r *AccountReply) decode(m protoreflect.Message) error {
	fd := field(m, "account")
	if !m.Has(fd) {
		r.Account = nil
		return nil
	}
	a := m.Get(fd).Message()
	meta := &domain.AccountMetadata{
		ID:                    domain.AccountRef(getInt64(a, "id")),
		Kind:                  domain.AccountKind(a.Get(field(a, "kind")).Int()),
		Name:                  getString(a, "name"),
		RequiresAuthorization: a.Get(field(a, "requires_authorization")).Bool(),
	}
	if s := getString(a, "owner"); s != "" {
		owner, err := parseUUID("owner", s)
		if err != nil {
			return err
		}
		meta.Owner = uuid.NullUUID{UUID: owner, Valid: true}
	}
	r.Account = meta
	return nil
}

type ApproversReply struct {
	Approvers []uuid.UUID
}

func (*ApproversReply) protoName() protoreflect.Name { return "ApproversReply" }

func (r *ApproversReply) encode(m protoreflect.Message) {
	if len(r.Approvers) == 0 {
		return
	}
	fd := field(m, "approvers")
	list := m.NewField(fd).List()
	for _, id := range r.Approvers {
		list.Append(protoreflect.ValueOfString(id.String()))
	}
	m.Set(fd, protoreflect.ValueOfList(list))
}

func (r *ApproversReply) decode(m protoreflect.Message) error {
	list := m.Get(field(m, "approvers")).List()
	r.Approvers = make([]uuid.UUID, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		id, err := parseUUID("approvers", list.Get(i).String())
		if err != nil {
			return err
		}
		r.Approvers = append(r.Approvers, id)
	}
	return nil
}

type TransferReply struct{}

func (*TransferReply) protoName() protoreflect.Name { return "TransferReply" }

func (*TransferReply) encode(protoreflect.Message) {}

func (*TransferReply) decode(protoreflect.Message) error { return nil }

type FormatReply struct {
	Text string
}

func (*FormatReply) protoName() protoreflect.Name { return "FormatReply" }

func (r *FormatReply) encode(m protoreflect.Message) {
	setString(m, "text", r.Text)
}

func (r *FormatReply) decode(m protoreflect.Message) error {
	r.Text = getString(m, "text")
	return nil
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	m.Set(field(m, name), protoreflect.ValueOfString(v))
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func setInt64(m protoreflect.Message, name protoreflect.Name, v int64) {
	m.Set(field(m, name), protoreflect.ValueOfInt64(v))
}

func getInt64(m protoreflect.Message, name protoreflect.Name) int64 {
	return m.Get(field(m, name)).Int()
}

func parseUUID(name, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q: %v", ErrMalformed, name, s, err)
	}
	return id, nil
}

// parseDecimal 空字串視為 0 (proto3 未設定的欄位)
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", domain.ErrInvalidAmount, s)
	}
	return d, nil
}

var (
	_ Message = (*OwnerRequest)(nil)
	_ Message = (*AccountRequest)(nil)
	_ Message = (*FundsRequest)(nil)
	_ Message = (*AccessRequest)(nil)
	_ Message = (*AmountRequest)(nil)
	_ Message = (*TransferRequest)(nil)
	_ Message = (*BalanceReply)(nil)
	_ Message = (*BoolReply)(nil)
	_ Message = (*AccountReply)(nil)
	_ Message = (*ApproversReply)(nil)
	_ Message = (*TransferReply)(nil)
	_ Message = (*FormatReply)(nil)
)
