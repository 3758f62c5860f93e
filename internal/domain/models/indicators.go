package models

// MACDCross describes a histogram sign change on the last bar.
type MACDCross string

const (
	CrossNone    MACDCross = "none"
	CrossBullish MACDCross = "bullish"
	CrossBearish MACDCross = "bearish"
)

// BandPosition is where the last close sits within the Bollinger bands.
type BandPosition string

const (
	BandUpper  BandPosition = "upper"
	BandMiddle BandPosition = "middle"
	BandLower  BandPosition = "lower"
)

type MACD struct {
	Line      float64   `json:"line"`
	Signal    float64   `json:"signal"`
	Histogram float64   `json:"histogram"`
	Cross     MACDCross `json:"cross"`
}

type Bollinger struct {
	Upper    float64      `json:"upper"`
	Middle   float64      `json:"middle"`
	Lower    float64      `json:"lower"`
	Position BandPosition `json:"position"`
}

// IndicatorSet is the output of the indicator engine for one bar series.
type IndicatorSet struct {
	RSI       float64   `json:"rsi"`
	MACD      MACD      `json:"macd"`
	Bollinger Bollinger `json:"bollinger"`
	LastClose float64   `json:"last_close"`
	Bars      int       `json:"bars"`
}
