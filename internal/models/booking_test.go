package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validBookingRequest() *CreateBookingRequest {
	return &CreateBookingRequest{
		TripID:       uuid.New().String(),
		TotalAmount:  250000,
		ContactEmail: "rider@example.com",
		Passengers: []PassengerDetail{
			{SeatLabel: "A1", PassengerName: "Nimal Perera"},
		},
	}
}

func TestCreateBookingRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateBookingRequest)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(r *CreateBookingRequest) {},
		},
		{
			name:    "bad trip id",
			mutate:  func(r *CreateBookingRequest) { r.TripID = "not-a-uuid" },
			wantErr: "trip_id",
		},
		{
			name:    "no passengers",
			mutate:  func(r *CreateBookingRequest) { r.Passengers = nil },
			wantErr: "passengers",
		},
		{
			name:    "zero amount",
			mutate:  func(r *CreateBookingRequest) { r.TotalAmount = 0 },
			wantErr: "total_amount",
		},
		{
			name: "duplicate seat labels",
			mutate: func(r *CreateBookingRequest) {
				r.Passengers = append(r.Passengers, PassengerDetail{SeatLabel: " A1 ", PassengerName: "Kamala"})
			},
			wantErr: "seat_label",
		},
		{
			name: "blank seat label",
			mutate: func(r *CreateBookingRequest) {
				r.Passengers[0].SeatLabel = "   "
			},
			wantErr: "seat_label",
		},
		{
			name: "blank passenger name",
			mutate: func(r *CreateBookingRequest) {
				r.Passengers[0].PassengerName = " "
			},
			wantErr: "passenger_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBookingRequest()
			tt.mutate(req)

			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantErr, validationErr.Field)
		})
	}
}

func TestBookingStatusTerminality(t *testing.T) {
	assert.False(t, BookingStatusPending.IsTerminal())
	assert.False(t, BookingStatusConfirmed.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.True(t, BookingStatusCompleted.IsTerminal())

	assert.True(t, BookingStatusPending.IsActive())
	assert.True(t, BookingStatusConfirmed.IsActive())
	assert.False(t, BookingStatusCancelled.IsActive())
}
