package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidSymbol, "unknown symbol: %s", "XYZ")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidSymbol, err.Code)
	suite.Equal("unknown symbol: XYZ", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataUnavailable, "no data in range", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeDataUnavailable, err.Code)
	suite.Equal("no data in range", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeDataUnavailable, cause, "no data for symbol: %s", "BTC/USD")
	suite.NotNil(err)
	suite.Equal(ErrCodeDataUnavailable, err.Code)
	suite.Equal("no data for symbol: BTC/USD", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataUnavailable, "no data in range", cause)
	suite.Equal("[200] no data in range: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataUnavailable, "no data in range", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeMalformedBar, "high below low")
	suite.Equal(ErrCodeMalformedBar, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeMalformedBar, "high below low")
	err := fmt.Errorf("load failed: %w", cause)
	suite.Equal(ErrCodeMalformedBar, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeNonStructured() {
	err := errors.New("plain error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvariantViolation, "mark out of order")
	suite.True(HasCode(err, ErrCodeInvariantViolation))
	suite.False(HasCode(err, ErrCodeOrderRejected))
}

func (suite *ErrorTestSuite) TestIsAndAs() {
	cause := New(ErrCodeRateLimited, "too many requests")
	wrapped := fmt.Errorf("fetch: %w", cause)

	suite.True(Is(wrapped, cause))

	var target *Error

	suite.True(As(wrapped, &target))
	suite.Equal(ErrCodeRateLimited, target.Code)
}
