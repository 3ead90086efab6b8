package clinic

// SeedClinics returns the clinics loaded at process start.
func SeedClinics() []Clinic {
	return []Clinic{
		{
			ID:       "1",
			Name:     "Toronto Downtown Dental",
			Address:  "123 Bay Street, Toronto, ON M5J 2S1",
			Phone:    "+1 (416) 555-1234",
			Email:    "info@torontodental.com",
			Rating:   4.5,
			Services: []string{"洗牙", "补牙", "根管治疗"},
			Hours:    "周一至周五: 9:00 AM - 6:00 PM",
			City:     "Toronto",
		},
		{
			ID:       "2",
			Name:     "Vancouver Dental Care",
			Address:  "456 Granville Street, Vancouver, BC V6C 1T2",
			Phone:    "+1 (604) 555-5678",
			Email:    "contact@vancouverdental.com",
			Rating:   4.8,
			Services: []string{"牙齿矫正", "种植牙", "牙齿美白"},
			Hours:    "周一至周六: 8:30 AM - 7:00 PM",
			City:     "Vancouver",
		},
		{
			ID:       "3",
			Name:     "Montreal Dental Center",
			Address:  "789 Saint Catherine Street, Montreal, QC H3B 1B5",
			Phone:    "+1 (514) 555-9012",
			Email:    "info@montrealdental.com",
			Rating:   4.6,
			Services: []string{"洗牙", "牙齿美白", "牙周治疗"},
			Hours:    "周一至周五: 8:00 AM - 5:00 PM",
			City:     "Montreal",
		},
		{
			ID:       "4",
			Name:     "Calgary Family Dental",
			Address:  "101 8th Avenue SW, Calgary, AB T2P 1B4",
			Phone:    "+1 (403) 555-3456",
			Email:    "info@calgarydental.com",
			Rating:   4.7,
			Services: []string{"儿童牙科", "补牙", "牙齿矫正"},
			Hours:    "周一至周六: 9:00 AM - 8:00 PM",
			City:     "Calgary",
		},
	}
}
