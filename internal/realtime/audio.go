package realtime

import (
	"fmt"
	"regexp"
	"strconv"
)

var digits = regexp.MustCompile(`\d+`)

// extractNumber - ambil angka pertama dari nama, "Loket 12" -> 12
func extractNumber(name string) int {
	match := digits.FindString(name)
	if match == "" {
		return 0
	}
	num, _ := strconv.Atoi(match)
	return num
}

/*
|--------------------------------------------------------------------------
| Audio Path Generation
|--------------------------------------------------------------------------
| "nomor antrian <token> ke loket <n>"
*/

func generateAudioPaths(tokenNumber int, counterName string) []string {
	paths := []string{
		"audio/ting.mp3",
		"audio/nomor_antrian.mp3",
	}

	paths = append(paths, parseNumberToAudio(tokenNumber)...)
	paths = append(paths, "audio/ke_loket.mp3")

	if n := extractNumber(counterName); n > 0 {
		paths = append(paths, parseNumberToAudio(n)...)
	}

	return paths
}

func parseNumberToAudio(num int) []string {
	if num == 0 {
		return []string{"audio/nol.mp3"}
	}

	ones := []string{
		"", "satu", "dua", "tiga", "empat",
		"lima", "enam", "tujuh", "delapan", "sembilan",
	}

	switch {
	case num < 10:
		return []string{fmt.Sprintf("audio/%s.mp3", ones[num])}
	case num == 10:
		return []string{"audio/sepuluh.mp3"}
	case num == 11:
		return []string{"audio/sebelas.mp3"}
	case num < 20:
		return []string{
			fmt.Sprintf("audio/%s.mp3", ones[num-10]),
			"audio/belas.mp3",
		}
	case num < 100:
		res := []string{
			fmt.Sprintf("audio/%s.mp3", ones[num/10]),
			"audio/puluh.mp3",
		}
		if num%10 > 0 {
			res = append(res, fmt.Sprintf("audio/%s.mp3", ones[num%10]))
		}
		return res
	case num == 100:
		return []string{"audio/seratus.mp3"}
	case num < 200:
		return append([]string{"audio/seratus.mp3"}, parseNumberToAudio(num-100)...)
	case num < 1000:
		res := []string{
			fmt.Sprintf("audio/%s.mp3", ones[num/100]),
			"audio/ratus.mp3",
		}
		if num%100 > 0 {
			res = append(res, parseNumberToAudio(num%100)...)
		}
		return res
	case num == 1000:
		return []string{"audio/seribu.mp3"}
	case num < 2000:
		return append([]string{"audio/seribu.mp3"}, parseNumberToAudio(num-1000)...)
	case num < 10000:
		res := append(parseNumberToAudio(num/1000), "audio/ribu.mp3")
		if num%1000 > 0 {
			res = append(res, parseNumberToAudio(num%1000)...)
		}
		return res
	}

	// di atas 9999 dibaca per digit
	var res []string
	for _, d := range strconv.Itoa(num) {
		res = append(res, parseNumberToAudio(int(d-'0'))...)
	}
	return res
}
