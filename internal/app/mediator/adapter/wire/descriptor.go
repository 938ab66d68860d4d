package wire

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FileName protobuf 檔案路徑，也是 ServiceDesc 的 Metadata
const FileName = "treasury/v1/ledger.proto"

// File treasury.v1 的 protobuf 描述，啟動時註冊到 protoregistry.GlobalFiles，
// 讓 gRPC reflection 可以列出服務。
var File protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(ledgerProto(), new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("wire: build %s: %v", FileName, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("wire: register %s: %v", FileName, err))
	}
	File = fd
}

// ledgerProto 對應下列 proto 定義
//
//	syntax = "proto3";
//	package treasury.v1;
//
//	message Account {
//	  int64 id = 1; int32 kind = 2; string owner = 3; string name = 4; bool requires_authorization = 5;
//	}
//	message TransferRequest {
//	  int64 source = 1; int64 destination = 2; string amount = 3; string memo = 4;
//	  string initiator = 5; string approver = 6; string origin = 7; bytes token = 8;
//	}
//	...
//	service Ledger { rpc GetBalance(OwnerRequest) returns (BalanceReply); ... }
func ledgerProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(FileName),
		Package: proto.String("treasury.v1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("OwnerRequest", scalar("owner", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("AccountRequest", scalar("ref", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
			message("FundsRequest",
				scalar("ref", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalar("amount", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			),
			message("AccessRequest",
				scalar("who", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("ref", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			),
			message("AmountRequest", scalar("amount", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("TransferRequest",
				scalar("source", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalar("destination", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalar("amount", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("memo", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("initiator", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("approver", 6, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("origin", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("token", 8, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			),
			message("Account",
				scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalar("kind", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("owner", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("name", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("requires_authorization", 5, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			),
			message("BalanceReply", scalar("balance", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("BoolReply", scalar("value", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
			message("AccountReply", &descriptorpb.FieldDescriptorProto{
				Name:     proto.String("account"),
				Number:   proto.Int32(1),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String(".treasury.v1.Account"),
			}),
			message("ApproversReply", &descriptorpb.FieldDescriptorProto{
				Name:   proto.String("approvers"),
				Number: proto.Int32(1),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			}),
			message("TransferReply"),
			message("FormatReply", scalar("text", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Ledger"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpc(MethodGetBalance, "OwnerRequest", "BalanceReply"),
				rpc(MethodHasFunds, "FundsRequest", "BoolReply"),
				rpc(MethodHasAccount, "OwnerRequest", "BoolReply"),
				rpc(MethodHasAccountByID, "AccountRequest", "BoolReply"),
				rpc(MethodGetAccountByOwner, "OwnerRequest", "AccountReply"),
				rpc(MethodResolveOrCreatePersonal, "OwnerRequest", "AccountReply"),
				rpc(MethodGetAccountByID, "AccountRequest", "AccountReply"),
				rpc(MethodGetApprovers, "AccountRequest", "ApproversReply"),
				rpc(MethodCanAccess, "AccessRequest", "BoolReply"),
				rpc(MethodTransfer, "TransferRequest", "TransferReply"),
				rpc(MethodFormatAmount, "AmountRequest", "FormatReply"),
			},
		}},
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func rpc(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(".treasury.v1." + input),
		OutputType: proto.String(".treasury.v1." + output),
	}
}
