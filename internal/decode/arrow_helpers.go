package decode

import (
	"github.com/apache/arrow-go/v18/arrow"
)

func arrowDate32(days int32) arrow.Date32 {
	return arrow.Date32(days)
}

func arrowTimestamp(micros int64) arrow.Timestamp {
	return arrow.Timestamp(micros)
}
