// Package devstore provides the Go SDK for the xbdev devstore service.
//
// The SDK covers cloud saves (upload/download of zipped save data),
// product version lookup, account lookup, update delivery and in-app
// notifications. It is consumed two ways:
//
// 1. As a plain Go library:
//
//	import "github.com/momo-AUX1/DevstoreSDK"
//
//	client := devstore.NewClient()
//	msg, err := client.UploadSave(ctx, "my-game", secret, "./saves")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// 2. As a C shared library, via the export shim in ffi/:
//
//	go build -buildmode=c-shared -o libdevstore.so ./ffi
//
// The shim returns DevstoreMessage structs whose string payload must
// be released with free_c_string; see ffi/ffi.go for the boundary
// contract.
package devstore

// Version is the current SDK version.
const Version = "0.4.1"
