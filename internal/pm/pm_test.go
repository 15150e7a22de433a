package pm

import "testing"

func TestUserID(t *testing.T) {
	tests := []struct {
		uid  int
		want int
	}{
		{0, 0},
		{1000, 0},
		{10123, 0},
		{99999, 0},
		{100000, 1},
		{1010123, 10},
	}

	for _, tt := range tests {
		if got := UserID(tt.uid); got != tt.want {
			t.Errorf("UserID(%d) = %d, want %d", tt.uid, got, tt.want)
		}
	}
}

func TestApplicationInfo_IsDebuggable(t *testing.T) {
	var nilInfo *ApplicationInfo
	if nilInfo.IsDebuggable() {
		t.Error("nil ApplicationInfo should not be debuggable")
	}

	info := &ApplicationInfo{Flags: 0x1}
	if info.IsDebuggable() {
		t.Error("flags 0x1 should not be debuggable")
	}

	info.Flags |= FlagDebuggable
	if !info.IsDebuggable() {
		t.Error("flags with FlagDebuggable should be debuggable")
	}
}
