// Package main exports the devstore SDK for C library use.
//
// Build a shared library like this:
//
//	go build -buildmode=c-shared -o libdevstore.so ./ffi
//
// Build a static library like this:
//
//	go build -buildmode=c-archive -o libdevstore.a ./ffi
//
// Both commands also generate a header which should be #include'd by
// C programs using the library.
//
// Every exported call returns a DevstoreMessage by value. The embedded
// message pointer is heap-allocated by the library; the caller owns it
// and must release it with free_c_string exactly once. All strings are
// UTF-8 on all platforms.
package main

/*
#include <stdlib.h>

struct DevstoreMessage {
	char*        message;
	unsigned int status;
	unsigned int code;
};
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
	"unsafe"

	devstore "github.com/momo-AUX1/DevstoreSDK"
)

// notifyInterval matches the service's publishing cadence.
const notifyInterval = 140 * time.Second

var (
	client = devstore.NewClient()

	storeOnce   sync.Once
	notifyStore *devstore.NotificationStore

	loopStarted atomic.Bool
)

func store() *devstore.NotificationStore {
	storeOnce.Do(func() {
		// Open only fails on allocator misuse; a missing or corrupt
		// store file yields an empty store.
		notifyStore, _ = devstore.OpenNotificationStore()
	})
	return notifyStore
}

// cMessage copies a Message into the C result struct. The text is
// allocated with malloc and released by the caller via free_c_string.
func cMessage(m devstore.Message) (out C.struct_DevstoreMessage) {
	out.message = C.CString(m.Text)
	out.status = C.uint(m.Status)
	out.code = C.uint(m.Code)
	return out
}

// recoverToMessage converts a panic into an error message instead of
// letting the unwind cross the C boundary.
func recoverToMessage(out *C.struct_DevstoreMessage) {
	if r := recover(); r != nil {
		*out = cMessage(devstore.Errorf("Error: internal failure: %v", r))
	}
}

// goParam decodes a C string parameter. nil yields a "Missing"
// message, empty an "Invalid" one, mirroring the parameter errors the
// Go layer produces.
func goParam(value *C.char, name string) (string, *devstore.Message) {
	if value == nil {
		m := devstore.Errorf("Missing %s parameter", name)
		return "", &m
	}
	s := C.GoString(value)
	if s == "" || !utf8.ValidString(s) {
		m := devstore.Errorf("Invalid %s parameter", name)
		return "", &m
	}
	return s, nil
}

// get_sdk_version reports the library version.
//
//export get_sdk_version
func get_sdk_version() (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	return cMessage(devstore.Success(devstore.Version))
}

// set_custom_url points the SDK at a different API endpoint, for
// self-hosted or staging deployments.
//
//export set_custom_url
func set_custom_url(customURL *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	raw, errMsg := goParam(customURL, "custom_url")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	if err := client.SetBaseURL(raw); err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success(fmt.Sprintf("Custom URL set to %s", client.BaseURL())))
}

// upload_save_to_server zips the file or folder at
// file_or_folder_path and uploads it as the cloud save for the
// package. Caller frees result.message via free_c_string.
//
//export upload_save_to_server
func upload_save_to_server(packageID, userSecret, fileOrFolderPath *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	secret, errMsg := goParam(userSecret, "user_secret")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	path, errMsg := goParam(fileOrFolderPath, "file_or_folder_path")
	if errMsg != nil {
		return cMessage(*errMsg)
	}

	ack, err := client.UploadSave(context.Background(), pkg, secret, path)
	if err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success(fmt.Sprintf("Upload successful: %s", ack)))
}

// download_save_from_server fetches the cloud save for the package
// and extracts it under extract_path. Caller frees result.message via
// free_c_string.
//
//export download_save_from_server
func download_save_from_server(packageID, userSecret, extractPath *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	secret, errMsg := goParam(userSecret, "user_secret")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	dest, errMsg := goParam(extractPath, "extract_path")
	if errMsg != nil {
		return cMessage(*errMsg)
	}

	if err := client.DownloadSave(context.Background(), pkg, secret, dest); err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success("Download and extraction successful."))
}

// get_version_from_id looks up the published version of a package.
//
//export get_version_from_id
func get_version_from_id(packageID *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	version, err := client.PackageVersion(context.Background(), pkg)
	if err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success(version))
}

// is_devstore_online probes service availability. result.code carries
// the raw HTTP status.
//
//export is_devstore_online
func is_devstore_online() (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	state, code, err := client.Online(context.Background())
	if err != nil {
		return cMessage(devstore.Errorf("Network error: %v", err))
	}
	switch state {
	case devstore.StateOnline:
		return cMessage(devstore.Success("Devstore is online.").WithCode(uint32(code)))
	case devstore.StateMaintenance:
		return cMessage(devstore.Warning("Devstore is under maintenance.").WithCode(uint32(code)))
	default:
		return cMessage(devstore.Warning(fmt.Sprintf("Devstore returned status %d", code)).WithCode(uint32(code)))
	}
}

// get_current_username resolves the account name behind a user secret.
//
//export get_current_username
func get_current_username(userSecret *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	secret, errMsg := goParam(userSecret, "user_secret")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	username, err := client.Username(context.Background(), secret)
	if err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success(username))
}

// download_update_for_product downloads and extracts the latest patch
// for a package. The success message contains the extraction path.
//
//export download_update_for_product
func download_update_for_product(packageID *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	path, err := client.DownloadUpdate(context.Background(), pkg)
	if err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success(fmt.Sprintf("Update downloaded and extracted to %s", path)))
}

// verify_download_v2 asks the service to confirm the caller's
// download of the package.
//
//export verify_download_v2
func verify_download_v2(packageID *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	if err := client.VerifyDownload(context.Background(), pkg); err != nil {
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success("Download verified successfully."))
}

// check_notification fetches the latest unseen notification for the
// package. On success the message text is "title: body" for the host
// to display; a seen or absent notification yields an info message.
//
//export check_notification
func check_notification(packageID *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	n, err := client.CheckNotification(context.Background(), pkg, store())
	if err != nil {
		if err == devstore.ErrNoNotification {
			return cMessage(devstore.Info("No notification to show."))
		}
		return cMessage(devstore.FromError(err))
	}
	return cMessage(devstore.Success(fmt.Sprintf("%s: %s", n.Title, n.Message)).WithCode(n.ID))
}

// init_simple_loop starts a background poll that marks notifications
// seen as they arrive, so hosts that only call check_notification on
// startup still converge. Starting the loop twice is a no-op.
//
//export init_simple_loop
func init_simple_loop(packageID *C.char) (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	pkg, errMsg := goParam(packageID, "package_id")
	if errMsg != nil {
		return cMessage(*errMsg)
	}
	if !loopStarted.CompareAndSwap(false, true) {
		return cMessage(devstore.Info("Background notification loop already running."))
	}

	go func() {
		// Check once right away, then on the interval.
		ticker := time.NewTicker(notifyInterval)
		defer ticker.Stop()
		for {
			_, _ = client.CheckNotification(context.Background(), pkg, store())
			<-ticker.C
		}
	}()
	return cMessage(devstore.Success("Background notification loop started."))
}

// free_c_string releases a string previously returned inside a
// DevstoreMessage. Passing NULL is a no-op; freeing the same pointer
// twice is undefined.
//
//export free_c_string
func free_c_string(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

// Conversions for driving the exports from plain Go. Test files
// cannot import "C", so these live here.

func cString(s string) *C.char {
	return C.CString(s)
}

func messageParts(m C.struct_DevstoreMessage) (text string, status, code uint32) {
	if m.message != nil {
		text = C.GoString(m.message)
	}
	return text, uint32(m.status), uint32(m.code)
}

// panicMessage panics behind the boundary guard so the recovery path
// stays exercisable.
func panicMessage() (result C.struct_DevstoreMessage) {
	defer recoverToMessage(&result)
	panic("simulated host fault")
}

// do nothing here - necessary for building into a C library
func main() {}
