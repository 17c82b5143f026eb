package processors

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/models"
)

func TestBuildAccruesOnOutstandingFace(t *testing.T) {
	is := is.New(t)
	inst := models.Instrument{
		SecurityID:   7,
		ISIN:         "INE657N07431",
		IssueDate:    day(2025, 1, 1),
		MaturityDate: day(2027, 1, 1),
		CouponRate:   10,
		FaceValue:    amt(1000),
	}
	periods := []models.InterestPeriod{
		{RecordDate: day(2025, 12, 17), DueDate: day(2026, 1, 1)},
		{RecordDate: day(2026, 12, 17), DueDate: day(2027, 1, 1)},
	}
	redemptions := []models.RedemptionRecord{
		{RecordDate: day(2026, 12, 17), DueDate: day(2027, 1, 1), Amount: amt(600), Kind: models.RedemptionPartial},
		{RecordDate: day(2025, 12, 17), DueDate: day(2026, 1, 1), Amount: amt(400), Kind: models.RedemptionPartial},
	}

	s, err := NewCashflowBuilder(testOptions()).Build(ScheduleInput{
		Instrument: inst, Periods: periods, Redemptions: redemptions, Frequency: 1, GeneratedAt: day(2025, 6, 1),
	})
	is.NoErr(err)
	is.Equal(s.OriginalFaceValue, amt(1000))
	is.Equal(len(s.Events), 4)

	// same-day coupon is priced before that day's redemption
	is.Equal(s.Events[0].Kind, models.KindInterest)
	is.Equal(s.Events[0].Amount, amt(100))
	is.Equal(s.Events[0].OutstandingBefore, amt(1000))
	is.Equal(s.Events[1].Kind, models.KindRedemption)
	is.Equal(s.Events[1].OutstandingAfter, amt(600))
	is.Equal(s.Events[2].Amount, amt(60))
	is.Equal(s.Events[2].OutstandingBefore, amt(600))
	is.Equal(s.Events[3].OutstandingAfter, amt(0))
	for _, e := range s.Events {
		is.Equal(e.SecurityID, int64(7))
	}
}

func TestBuildRoundsToCents(t *testing.T) {
	is := is.New(t)
	inst := models.Instrument{ISIN: "X", IssueDate: day(2025, 1, 1), MaturityDate: day(2025, 4, 1), CouponRate: 7.35, FaceValue: amt(1000)}
	s, err := NewCashflowBuilder(testOptions()).Build(ScheduleInput{
		Instrument:  inst,
		Periods:     []models.InterestPeriod{{RecordDate: day(2025, 3, 17), DueDate: day(2025, 4, 1)}},
		Redemptions: []models.RedemptionRecord{{RecordDate: day(2025, 3, 17), DueDate: day(2025, 4, 1), Amount: amt(1000), Kind: models.RedemptionFull}},
		Frequency:   4,
	})
	is.NoErr(err)
	// 1000 * 7.35% * 90/365 = 18.1232...
	is.Equal(s.Events[0].Amount, decimal.Decimal64p2(1812))
}

func TestBuildDropsCouponsAfterFullRepayment(t *testing.T) {
	is := is.New(t)
	inst := models.Instrument{ISIN: "X", IssueDate: day(2025, 1, 1), CouponRate: 8, FaceValue: amt(1000)}
	s, err := NewCashflowBuilder(testOptions()).Build(ScheduleInput{
		Instrument: inst,
		Periods: []models.InterestPeriod{
			{RecordDate: day(2025, 12, 17), DueDate: day(2026, 1, 1)},
			{RecordDate: day(2026, 12, 17), DueDate: day(2027, 1, 1)},
		},
		Redemptions: []models.RedemptionRecord{{RecordDate: day(2025, 12, 17), DueDate: day(2026, 1, 1), Amount: amt(1000)}},
		Frequency:   1,
	})
	is.NoErr(err)
	is.Equal(len(s.Events), 2)
}

func TestBuildRejectsInconsistentPeriod(t *testing.T) {
	is := is.New(t)
	inst := models.Instrument{ISIN: "X", IssueDate: day(2025, 1, 1), CouponRate: 8, FaceValue: amt(1000)}
	_, err := NewCashflowBuilder(testOptions()).Build(ScheduleInput{
		Instrument:  inst,
		Periods:     []models.InterestPeriod{{RecordDate: day(2025, 6, 20), DueDate: day(2025, 6, 10)}},
		Redemptions: []models.RedemptionRecord{{RecordDate: day(2025, 12, 17), DueDate: day(2026, 1, 1), Amount: amt(1000)}},
		Frequency:   1,
	})
	is.True(errors.Is(err, models.ErrDataInconsistency))
}

func TestScheduleTrajectoryRoundTrip(t *testing.T) {
	is := is.New(t)
	inst := sampleInstrument()
	disclosure := models.RedemptionDisclosure{
		Type: models.RedemptionTypePartialByFace,
		Entries: []models.RedemptionEntry{
			{Date: day(2024, 3, 1), ValueRedeemed: amt(250)},
			{Date: day(2025, 3, 1), ValueRedeemed: amt(250)},
			{Date: day(2026, 3, 1), ValueRedeemed: amt(500)},
		},
	}
	records, err := NewRedemptionAmortizer(testOptions()).Amortize(context.Background(), inst, disclosure, nil)
	is.NoErr(err)
	periods, err := SynthesizePeriods(inst.IssueDate, inst.MaturityDate, 2, 15)
	is.NoErr(err)

	s, err := NewCashflowBuilder(testOptions()).Build(ScheduleInput{Instrument: inst, Periods: periods, Redemptions: records, Frequency: 2})
	is.NoErr(err)

	fromSchedule := ScheduleTrajectory(s)
	is.Equal(Trajectory(RecordsFromSchedule(s)), fromSchedule)
	is.Equal(Trajectory(records), fromSchedule)
}

func TestBuildZeroCoupon(t *testing.T) {
	inst := models.Instrument{
		SecurityID:   9,
		ISIN:         "INE01CY079E7",
		IssueDate:    day(2025, 1, 1),
		MaturityDate: day(2026, 1, 1),
		FaceValue:    amt(1000),
	}
	testCases := []struct {
		name      string
		cashflows []models.CouponCashflow
		want      decimal.Decimal64p2
	}{
		{"payoff at threshold is kept", []models.CouponCashflow{{Event: "Interest", Amount: amt(1200)}}, amt(1200)},
		{"payoff above threshold includes principal", []models.CouponCashflow{{Event: "Interest", Amount: amt(1300)}}, amt(300)},
		{"redemption amount less face", []models.CouponCashflow{{Event: "Redemption", Amount: amt(1150)}}, amt(150)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			s, err := NewCashflowBuilder(testOptions()).BuildZeroCoupon(inst, tc.cashflows, day(2025, 6, 1))
			is.NoErr(err)
			is.Equal(len(s.Events), 2)
			is.Equal(s.Events[0].Kind, models.KindInterest)
			is.Equal(s.Events[0].Amount, tc.want)
			is.Equal(s.Events[0].DueDate, inst.MaturityDate)
			is.Equal(s.Events[1].Kind, models.KindRedemption)
			is.Equal(s.Events[1].Amount, amt(1000))
			is.Equal(s.Events[1].OutstandingAfter, amt(0))
			is.Equal(s.Events[1].RecordDate, day(2025, 12, 17))
		})
	}
}

func TestBuildZeroCouponFailures(t *testing.T) {
	b := NewCashflowBuilder(testOptions())
	good := models.Instrument{ISIN: "X", IssueDate: day(2025, 1, 1), MaturityDate: day(2026, 1, 1), FaceValue: amt(1000)}
	interest := []models.CouponCashflow{{Event: "Interest", Amount: amt(1100)}}

	sameDay := good
	sameDay.MaturityDate = good.IssueDate
	noFace := good
	noFace.FaceValue = 0

	testCases := []struct {
		name      string
		inst      models.Instrument
		cashflows []models.CouponCashflow
		want      error
	}{
		{"no payoff published", good, nil, models.ErrMissingData},
		{"zero day count", sameDay, interest, models.ErrDataInconsistency},
		{"maturity before issue", models.Instrument{ISIN: "X", IssueDate: day(2026, 1, 1), MaturityDate: day(2025, 1, 1), FaceValue: amt(1000)}, interest, models.ErrDataInconsistency},
		{"zero face", noFace, interest, models.ErrDataInconsistency},
		{"redemption below face", good, []models.CouponCashflow{{Event: "Redemption", Amount: amt(900)}}, models.ErrDataInconsistency},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			_, err := b.BuildZeroCoupon(tc.inst, tc.cashflows, day(2025, 6, 1))
			is.True(errors.Is(err, tc.want))
		})
	}
}

func TestBuildDayCountConventions(t *testing.T) {
	inst := models.Instrument{
		SecurityID: 9, ISIN: "INE001A07AB1",
		IssueDate: day(2023, 3, 1), MaturityDate: day(2025, 3, 1),
		CouponRate: 10, FaceValue: amt(1000),
	}
	redemptions := []models.RedemptionRecord{
		{RecordDate: day(2025, 2, 14), DueDate: day(2025, 3, 1), Amount: amt(1000), Kind: models.RedemptionFull},
	}
	testCases := []struct {
		dayCount DayCount
		want     []decimal.Decimal64p2
	}{
		// 366 actual days over 365, then 365 over 365
		{DayCountAct365, []decimal.Decimal64p2{10027, 10000}},
		// 306/365 + 60/366, then 306/366 + 59/365
		{DayCountActualDaily, []decimal.Decimal64p2{10023, 9977}},
	}
	for _, tc := range testCases {
		t.Run(string(tc.dayCount), func(t *testing.T) {
			is := is.New(t)
			opts := testOptions()
			opts.DayCount = tc.dayCount
			periods, err := SynthesizeCalendarPeriods(inst.IssueDate, inst.MaturityDate, 1, 15)
			is.NoErr(err)
			is.Equal(periods[0].DueDate, day(2024, 3, 1))

			s, err := NewCashflowBuilder(opts).Build(ScheduleInput{
				Instrument: inst, Periods: periods, Redemptions: redemptions, Frequency: 1, GeneratedAt: day(2023, 3, 1),
			})
			is.NoErr(err)
			is.Equal(len(s.Events), 3)
			is.Equal(s.Events[0].Amount, tc.want[0])
			is.Equal(s.Events[1].Amount, tc.want[1])
		})
	}
}
