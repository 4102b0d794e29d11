package bt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult_Status(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		result Result
		want   Status
		err    error
	}{
		{"named success", Named("SUCCESS"), Success, nil},
		{"named failure", Named("FAILURE"), Failure, nil},
		{"named running", Named("RUNNING"), Running, nil},
		{"named lower case", Named("success"), Failure, ErrUnknownStatusName},
		{"named idle", Named("IDLE"), Failure, ErrUnknownStatusName},
		{"named empty", Named(""), Failure, ErrUnknownStatusName},
		{"bool true", Bool(true), Success, nil},
		{"bool false", Bool(false), Failure, nil},
		{"code running", Code(1), Running, nil},
		{"code success", Code(2), Success, nil},
		{"code failure", Code(3), Failure, nil},
		{"code idle", Code(0), Failure, ErrInvalidStatusCode},
		{"code negative", Code(-1), Failure, ErrInvalidStatusCode},
		{"code out of range", Code(4), Failure, ErrInvalidStatusCode},
		{"zero value", Result{}, Failure, ErrUnmappedResult},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.result.Status()
			require.Equal(t, tc.want, got)
			if tc.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestOf(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   any
		want Status
		ok   bool
	}{
		{"SUCCESS", Success, true},
		{"RUNNING", Running, true},
		{"nope", Failure, false},
		{true, Success, true},
		{false, Failure, true},
		{2, Success, true},
		{int8(1), Running, true},
		{int32(3), Failure, true},
		{int64(2), Success, true},
		{uint8(1), Running, true},
		{uint64(2), Success, true},
		{float64(1), Running, true},
		{1.5, Failure, false},
		{int64(1) << 40, Failure, false},
		{Success, Success, true},
		{Named("RUNNING"), Running, true},
		{nil, Failure, false},
		{[]string{"SUCCESS"}, Failure, false},
		{struct{}{}, Failure, false},
	} {
		got, err := Of(tc.in).Status()
		require.Equal(t, tc.want, got, "input %#v", tc.in)
		if tc.ok {
			require.NoError(t, err, "input %#v", tc.in)
		} else {
			require.Error(t, err, "input %#v", tc.in)
		}
	}
}

func TestResult_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, `Named("SUCCESS")`, Named("SUCCESS").String())
	require.Equal(t, "Bool(true)", Bool(true).String())
	require.Equal(t, "Code(2)", Code(2).String())
	require.Equal(t, "Unmapped(float64)", Of(1.5).String())
}
