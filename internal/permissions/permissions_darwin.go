//go:build darwin

package permissions

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AVFoundation -framework Foundation
#import <AVFoundation/AVFoundation.h>
#include <dispatch/dispatch.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

// Blocks until the user answers the system prompt.
int requestMicrophonePermission() {
    __block BOOL result = NO;
    dispatch_semaphore_t sem = dispatch_semaphore_create(0);
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {
        result = granted;
        dispatch_semaphore_signal(sem);
    }];
    dispatch_semaphore_wait(sem, DISPATCH_TIME_FOREVER);
    return result ? 1 : 0;
}
*/
import "C"

type darwinPlatform struct{}

// New returns the AVFoundation-backed capability collaborator.
func New() Platform {
	return darwinPlatform{}
}

func (darwinPlatform) Query() Capability {
	return Capability{
		Supported:  true,
		Permission: Status(C.checkMicrophonePermission()),
	}
}

// RequestPermission triggers the system microphone permission dialog
func (darwinPlatform) RequestPermission() (Status, error) {
	if C.requestMicrophonePermission() == 1 {
		return PermissionAuthorized, nil
	}
	return Status(C.checkMicrophonePermission()), nil
}
