package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTask_ID(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{name: "present", task: Task{"task_id": "T1"}, want: "T1"},
		{name: "missing", task: Task{}, want: ""},
		{name: "not a string", task: Task{"task_id": 42}, want: ""},
		{name: "nil task", task: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.task.ID())
		})
	}
}

func TestTask_Clone(t *testing.T) {
	task := Task{"task_id": "T1", "amount": 100}

	c := task.Clone()
	c["amount"] = 200
	c["extra"] = true

	require.Equal(t, 100, task["amount"])
	require.NotContains(t, task, "extra")
}

func TestResult_Float(t *testing.T) {
	r := Result{
		"f64": 0.5,
		"int": 3,
		"num": json.Number("0.25"),
		"str": "0.5",
	}

	f, ok := r.Float("f64")
	require.True(t, ok)
	require.Equal(t, 0.5, f)

	f, ok = r.Float("int")
	require.True(t, ok)
	require.Equal(t, 3.0, f)

	f, ok = r.Float("num")
	require.True(t, ok)
	require.Equal(t, 0.25, f)

	_, ok = r.Float("str")
	require.False(t, ok)

	_, ok = r.Float("absent")
	require.False(t, ok)
}

func TestResult_Strings(t *testing.T) {
	r := Result{
		"plain":   []string{"a", "b"},
		"decoded": []any{"a", "b"},
		"mixed":   []any{"a", 1, "b"},
	}

	require.Equal(t, []string{"a", "b"}, r.Strings("plain"))
	require.Equal(t, []string{"a", "b"}, r.Strings("decoded"))
	require.Equal(t, []string{"a", "b"}, r.Strings("mixed"))
	require.Nil(t, r.Strings("absent"))
}
