package model

import (
    "errors"
    "fmt"
    "strconv"
    "strings"
)

var sizeUnits = map[string]uint64{
    "B": 1,
    "KB": 1024,
    "MB": 1024 * 1024,
    "GB": 1024 * 1024 * 1024,
    "TB": 1024 * 1024 * 1024 * 1024,
}

// ParseSize converts a quantity such as "512MB" into bytes. A bare number is
// taken to be bytes.
func ParseSize(s string) (uint64, error) {
    s = strings.TrimSpace(s)

    if s == "" {
        return 0, errors.New("A size cannot be empty")
    }

    numberEnd := len(s)

    for i, r := range s {
        if r < '0' || r > '9' {
            numberEnd = i

            break
        }
    }

    if numberEnd == 0 {
        return 0, errors.New(fmt.Sprintf("%s is not a valid size", s))
    }

    quantity, err := strconv.ParseUint(s[:numberEnd], 10, 64)

    if err != nil {
        return 0, errors.New(fmt.Sprintf("%s is not a valid size", s))
    }

    unit := strings.ToUpper(strings.TrimSpace(s[numberEnd:]))

    if unit == "" {
        return quantity, nil
    }

    multiplier, ok := sizeUnits[unit]

    if !ok {
        return 0, errors.New(fmt.Sprintf("%s is not a valid size unit. Valid units are B, KB, MB, GB and TB", unit))
    }

    return quantity * multiplier, nil
}

func FormatSize(bytes uint64) string {
    switch {
    case bytes >= sizeUnits["GB"] && bytes % sizeUnits["GB"] == 0:
        return fmt.Sprintf("%dGB", bytes / sizeUnits["GB"])
    case bytes >= sizeUnits["MB"] && bytes % sizeUnits["MB"] == 0:
        return fmt.Sprintf("%dMB", bytes / sizeUnits["MB"])
    case bytes >= sizeUnits["KB"] && bytes % sizeUnits["KB"] == 0:
        return fmt.Sprintf("%dKB", bytes / sizeUnits["KB"])
    default:
        return fmt.Sprintf("%dB", bytes)
    }
}
