package capture

import "testing"

func TestPackUnpackKey_RoundTrips(t *testing.T) {
	tests := []struct {
		userID, kernID uint32
	}{
		{0, 0},
		{1, 2},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{missingStackID, 0},
		{0, missingStackID},
	}
	for _, tt := range tests {
		key := PackKey(tt.userID, tt.kernID)
		gotUser, gotKern := UnpackKey(key)
		if gotUser != tt.userID || gotKern != tt.kernID {
			t.Errorf("UnpackKey(PackKey(%d, %d)) = (%d, %d), want (%d, %d)",
				tt.userID, tt.kernID, gotUser, gotKern, tt.userID, tt.kernID)
		}
	}
}
