package data

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRuntimeFormat 片长格式错误
var ErrInvalidRuntimeFormat = errors.New("invalid runtime format")

// Runtime 电影片长（分钟），JSON 中输出为 "<n> mins"
type Runtime int32

func (r Runtime) MarshalJSON() ([]byte, error) {
	jsonValue := fmt.Sprintf("%d mins", r)

	return []byte(strconv.Quote(jsonValue)), nil
}

// UnmarshalJSON 接受 "<n> mins" 或者纯数字，表单提交的数字片长也能直接使用
func (r *Runtime) UnmarshalJSON(jsonValue []byte) error {
	raw := string(jsonValue)

	if unquoted, err := strconv.Unquote(raw); err == nil {
		parts := strings.Fields(unquoted)
		switch {
		case len(parts) == 2 && parts[1] == "mins":
			raw = parts[0]
		case len(parts) == 1:
			raw = parts[0]
		default:
			return ErrInvalidRuntimeFormat
		}
	}

	i, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return ErrInvalidRuntimeFormat
	}

	*r = Runtime(i)

	return nil
}
