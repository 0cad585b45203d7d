package export

import "smartkeiba/internal/domain"

// Go layout of the hasso_date strings written by the race loaders.
const hassoDateLayout = "2006/01/02 15:04:05"

var scheduleFields = []string{
	"id", "year", "month_day", "period1_start", "period2_end", "modified", "created",
}

var raceFields = []string{
	"race_code_kol", "race_code_jvd", "hasso_date", "kaiji", "nichiji", "race_bango",
	"race_bango_num", "race_name", "kyori_kubun", "keibajo_code_jvd", "keibajo_code_kol",
	"keibajo_name", "chuo_chiho_kubun", "chuo_chiho_kubun_label", "kyosomei_15moji",
	"kyosomei_7moji", "grade_code", "grade_code_label", "jpn_flag", "jpn_flag_label",
	"bettei_barei_handicap_summary_code", "bettei_barei_handicap_summary_code_label",
	"bettei_barei_handicap_detail", "kyoso_joken_age_limit", "kyoso_joken_age_limit_label",
	"kyoso_joken_kubun", "kyoso_joken_kubun_label", "heichi_shogai_kubun",
	"heichi_shogai_kubun_label", "track_code1_dirtsiba", "track_code1_dirtsiba_label",
	"track_code2_LRS", "track_code2_LRS_label", "track_code3_inout",
	"track_code3_inout_label", "course_kubun", "course_kubun_label", "kyori",
	"toroku_tosu_num", "torikeshi_tosu_num", "tenko_code", "tenko_code_label",
	"babajotai_code", "babajotai_code_label", "pace_yosou", "pace_yosou_label",
	"pace_kekka", "pace_kekka_label", "race_tanpyo", "juryo_handicap_flag",
	"keibajo_komawari_curve4_flag", "keibajo_omawari_curve4_flag",
	"keibajo_straight_short_flag", "keibajo_straight_long_flag", "created", "modified",
}

var raceUmaDetailFields = []string{
	"race_code_uma_kol", "race_code_uma_jvd", "race_code_kol", "race_code_jvd",
	"keibajo_code_jvd", "keibajo_code_kol", "hasso_date", "kaiji", "nichiji", "race_bango",
	"race_bango_num", "waku_kubun", "wakuban", "umaban", "umaban_num", "umaban_even",
	"bamei", "seibetsu_code", "seibetsu_code_label", "barei", "barei_num", "futan_juryo",
	"futan_juryo_float", "blinker_shiyo_kubun", "blinker_shiyo_kubun_label", "rating",
	"rating_float", "banushimei", "banushimei_ryakusho", "ketto_toroku_bango_kol",
	"ketto1_f_hanshoku_toroku_bango", "ketto1_f_bamei", "ketto2_m_hanshoku_toroku_bango",
	"ketto2_m_bamei", "ketto5_mf_hanshoku_toroku_bango", "ketto5_mf_bamei", "kyuyo_riyu",
	"kishumei", "kishumei_ryakusho", "kishu_code", "kishu_tozai_shozoku_code",
	"kishu_tozai_shozoku_code_label", "kishu_minarai_code", "kishu_minarai_code_label",
	"kishu_norikawari_kubun", "kishu_norikawari_kubun_label", "kishu_shozokubasho_code",
	"kishu_shozokubasho_code_label", "kishu_shozoku_chokyoshi_code", "chokyoshi_code",
	"chokyoshimei", "chokyoshimei_ryakusho", "chokyoshi_shozokubasho_code",
	"chokyoshi_shozokubasho_code_label", "chokyoshi_tracen_kubun",
	"chokyoshi_tracen_kubun_label", "chokyo_flag", "chokyo_flag_label", "chokyo_kijosha",
	"chokyo_kijosha_equal_kishumei_flag", "chokyo_nengappi", "chokyo_nengappi_label",
	"chokyo_nengappi_date", "chokyo_basho", "chokyo_course", "chokyo_course_kubun",
	"chokyo_basho_course_label", "chokyo_babajotai", "chokyo_hanro_pool_kaisu_int",
	"chokyo_8f", "chokyo_8f_float", "chokyo_7f", "chokyo_7f_float", "chokyo_6f",
	"chokyo_6f_float", "chokyo_5f", "chokyo_5f_float", "chokyo_4f", "chokyo_4f_float",
	"chokyo_3f", "chokyo_3f_float", "chokyo_2f_float", "chokyo_1f", "chokyo_1f_float",
	"chokyo_lap_8f", "chokyo_lap_7f", "chokyo_lap_6f", "chokyo_lap_5f", "chokyo_lap_4f",
	"chokyo_lap_3f", "chokyo_lap_2f", "chokyo_lap_group", "shirushi_hanro_4f_flag",
	"shirushi_hanro_1f_flag", "shirushi_wood_6f_flag", "shirushi_wood_1f_flag",
	"shirushi_point", "shirushi_kubun_yosou_tansho_ninkijun", "shirushi_kubun_rank",
	"shirushi_shirushi_label", "shirushi_shirushi_num", "chokyo_ichidori",
	"chokyo_ichidori_label", "chokyo_ashiiro", "chokyo_ashiiro_label", "chokyo_yajirushi",
	"chokyo_yajirushi_label", "chokyo_reigai", "chokyo_awase", "chokyo_awase_kubun",
	"chokyo_awase_flag", "chokyo_awase_flag_label", "chokyo_tanpyo", "chokyo_honsu_course",
	"chokyo_honsu_course_num", "chokyo_honsu_hanro", "chokyo_honsu_hanro_num",
	"chokyo_honsu_pool", "chokyo_honsu_pool_num", "speed_sisu_last_1",
	"speed_sisu_last_1_float", "speed_sisu_last_2", "speed_sisu_last_2_float",
	"speed_sisu_last_3", "speed_sisu_last_3_float", "speed_sisu_last_4",
	"speed_sisu_last_4_float", "speed_sisu_last_5", "speed_sisu_last_5_float", "rotation1",
	"rotation1_label", "rotation2", "rotation2_label", "rotation3", "rotation3_label",
	"rotation4", "rotation4_label", "rotation5", "rotation5_label", "rotation6",
	"rotation6_label", "rotation7", "rotation7_label", "rotation8", "rotation8_label",
	"zensou_kankaku", "bataiju", "bataiju_kubun", "bataiju_zensou", "bataiju_kubun_zensou",
	"kyori_kubun_zensou", "kyori_extension_flag", "kyori_shortening_flag",
	"ensei_kansai_to_kantou_flag", "ensei_kantou_to_kansai_flag", "ensei_flag",
	"track_code1_label_dirtsiba_zensou", "siba_to_dirt_flag", "dirt_to_siba_flag",
	"record_shisu", "record_shisu_num", "zogen_sa", "zogen_sa_num", "tansho_ninkijun",
	"tansho_ninkijun_num", "tansho_odds", "tansho_odds_float", "kakutei_chakujun",
	"kakutei_chakujun_num", "tansho_haraimodoshi", "tansho_haraimodoshi_num",
	"fukusho_haraimodoshi", "fukusho_haraimodoshi_num", "ijo_kubun_code1",
	"ijo_kubun_code1_label", "ijo_kubun_code2", "ijo_kubun_code2_label", "nyusen_juni",
	"nyusen_juni_num", "record_flag", "record_flag_label", "soha_time", "soha_time_float",
	"soha_time_label", "chakusa_code1", "chakusa_code1_num", "chakusa_code2",
	"chakusa_code2_label", "chakusa_label", "time_sa", "time_sa_float", "zenhan_3f",
	"zenhan_3f_float", "kohan_3f", "kohan_3f_float", "corner1_juni", "corner1_juni_label",
	"corner2_juni", "corner2_juni_label", "corner3_juni", "corner3_juni_label",
	"corner4_juni", "corner4_juni_label", "corner4_ichidori", "corner4_ichidori_label",
	"race_name", "kyori_kubun", "keibajo_name", "chuo_chiho_kubun",
	"chuo_chiho_kubun_label", "kyosomei_15moji", "kyosomei_7moji", "grade_code",
	"grade_code_label", "jpn_flag", "jpn_flag_label", "bettei_barei_handicap_summary_code",
	"bettei_barei_handicap_summary_code_label", "bettei_barei_handicap_detail",
	"kyoso_joken_age_limit", "kyoso_joken_age_limit_label", "kyoso_joken_kubun",
	"kyoso_joken_kubun_label", "heichi_shogai_kubun", "heichi_shogai_kubun_label",
	"track_code1_dirtsiba", "track_code1_dirtsiba_label", "track_code2_LRS",
	"track_code2_LRS_label", "track_code3_inout", "track_code3_inout_label", "course_kubun",
	"course_kubun_label", "kyori", "toroku_tosu_num", "torikeshi_tosu_num", "tenko_code",
	"tenko_code_label", "babajotai_code", "babajotai_code_label", "pace_yosou",
	"pace_yosou_label", "pace_kekka", "pace_kekka_label", "race_tanpyo",
	"juryo_handicap_flag", "keibajo_komawari_curve4_flag", "keibajo_omawari_curve4_flag",
	"keibajo_straight_short_flag", "keibajo_straight_long_flag", "created", "modified",
}

// DefaultJobs returns the built-in export jobs. Declarations in the
// project's exports directory replace a built-in job of the same name.
func DefaultJobs() []domain.ExportJob {
	return []domain.ExportJob{
		{
			Name:       "schedules",
			Table:      "schedule",
			KeyColumn:  "id",
			Fields:     scheduleFields,
			DateColumn: "id",
			ChunkSize:  domain.DefaultChunkSize,
			Mode:       domain.ExportModeBatch,
		},
		{
			Name:        "races",
			Table:       "race",
			KeyColumn:   "race_code_jvd",
			Fields:      raceFields,
			HashExclude: []string{"created", "modified"},
			DateColumn:  "hasso_date",
			DateLayout:  hassoDateLayout,
			ChunkSize:   domain.DefaultChunkSize,
			Mode:        domain.ExportModeBatch,
		},
		{
			Name:        "race_uma_details",
			Table:       "race_uma_details",
			KeyColumn:   "race_code_uma_jvd",
			Fields:      raceUmaDetailFields,
			HashExclude: []string{"created", "modified"},
			DateColumn:  "hasso_date",
			DateLayout:  hassoDateLayout,
			ChunkSize:   domain.DefaultChunkSize,
			Mode:        domain.ExportModeStreaming,
		},
	}
}

// MergeJobs overlays declared jobs on base by name. Base order is kept and
// new jobs are appended in declaration order.
func MergeJobs(base, declared []domain.ExportJob) []domain.ExportJob {
	index := make(map[string]int, len(base))
	out := make([]domain.ExportJob, 0, len(base)+len(declared))
	for _, j := range base {
		index[j.Name] = len(out)
		out = append(out, j)
	}
	for _, j := range declared {
		if i, ok := index[j.Name]; ok {
			out[i] = j
			continue
		}
		index[j.Name] = len(out)
		out = append(out, j)
	}
	return out
}
